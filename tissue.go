// Package tissue provides a minimal public API for extending the tissue
// issue tracker with custom tooling.
//
// Most callers should use the tissue CLI directly. This package exports the
// essential types and functions needed for Go-based extensions that want to
// drive the store programmatically.
package tissue

import (
	"github.com/tissue-vcs/tissue/internal/store"
	"github.com/tissue-vcs/tissue/internal/types"
)

// Store is the dual-storage engine: the append-only log plus its derived
// relational cache.
type Store = store.Store

// Init creates a new store directory with the given normalized prefix.
func Init(dir, prefix string) (*Store, error) {
	return store.Init(dir, prefix)
}

// Open opens an existing store directory, reconciling the cache with the
// log before returning.
func Open(dir string) (*Store, error) {
	return store.Open(dir)
}

// FindStoreDir walks upward from start looking for a conventional store
// directory.
func FindStoreDir(start string) (string, bool) {
	return store.FindStoreDir(start)
}

// Store directory layout, re-exported for callers that need to locate the
// log or cache file directly (e.g. a read-only diagnostic).
const (
	LogFileName    = store.LogFileName
	CacheFileName  = store.CacheFileName
	LockFileName   = store.LockFileName
	IgnoreFileName = store.IgnoreFileName
)

// IssueUpdate carries the partial-update fields accepted by (*Store).UpdateIssue.
type IssueUpdate = store.IssueUpdate

// ListFilter collects the optional filters accepted by (*Store).ListIssues.
type ListFilter = store.ListFilter

// MigrateResult reports the counts a migration added or skipped.
type MigrateResult = store.MigrateResult

// Core data types.
type (
	Issue      = types.Issue
	Comment    = types.Comment
	Dependency = types.Dependency
	Status     = types.Status
	DepKind    = types.DepKind
	DepState   = types.DepState
)

// Status constants.
const (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusPaused     = types.StatusPaused
	StatusDuplicate  = types.StatusDuplicate
	StatusClosed     = types.StatusClosed
)

// Dependency kind constants.
const (
	DepBlocks  = types.DepBlocks
	DepParent  = types.DepParent
	DepRelates = types.DepRelates
)

// DefaultPriority is assigned when a caller does not specify one. Priority 0
// is a rejected value, not a synonym for "unset" (spec.md §8).
const DefaultPriority = types.DefaultPriority

// Error sentinels, re-exported for callers using errors.Is.
var (
	ErrStoreNotFound    = store.ErrStoreNotFound
	ErrIssueNotFound    = store.ErrIssueNotFound
	ErrIssueIDAmbiguous = store.ErrIssueIDAmbiguous
	ErrInvalidIDPrefix  = store.ErrInvalidIDPrefix
	ErrInvalidPrefix    = store.ErrInvalidPrefix
	ErrInvalidDepKind   = store.ErrInvalidDepKind
	ErrSelfDependency   = store.ErrSelfDependency
	ErrIssueIDCollision = store.ErrIssueIDCollision
	ErrDatabaseBusy     = store.ErrDatabaseBusy
	ErrMalformedRecord  = store.ErrMalformedRecord
	ErrCacheError       = store.ErrCacheError
)
