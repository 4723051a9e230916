package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tissue-vcs/tissue/internal/types"
)

// TestCacheDeletionReproducesState exercises spec.md §8's invariant:
// deleting the cache file and reopening the store reproduces the exact set
// of issues, tags, and comments observable before deletion.
func TestCacheDeletionReproducesState(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir, "acme")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()
	issue, err := s.CreateIssue(ctx, "X", "body", 2, types.StatusOpen, []string{"z", "a"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if _, err := s.AddComment(ctx, issue.ID, "hello"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	beforeRev, beforeUpdated := issue.Rev, issue.UpdatedAt
	s.Close()

	if err := os.Remove(filepath.Join(dir, CacheFileName)); err != nil {
		t.Fatalf("remove cache: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open after cache deletion: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.FetchIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if got.Rev != beforeRev || got.UpdatedAt != beforeUpdated {
		t.Errorf("rev/updated_at changed across reimport: got rev=%s updated_at=%d, want rev=%s updated_at=%d",
			got.Rev, got.UpdatedAt, beforeRev, beforeUpdated)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "a" || got.Tags[1] != "z" {
		t.Errorf("tags not reproduced sorted: %v", got.Tags)
	}

	comments, err := reopened.FetchComments(ctx, issue.ID)
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "hello" {
		t.Fatalf("comment not reproduced: %+v", comments)
	}
}

// TestForceReimportIsIdempotent exercises spec.md §8's idempotence property:
// re-running the importer over the same log twice leaves the cache
// unchanged.
func TestForceReimportIsIdempotent(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	issue, err := s.CreateIssue(ctx, "X", "", 2, types.StatusOpen, nil)
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	if err := s.ForceReimport(ctx); err != nil {
		t.Fatalf("first ForceReimport: %v", err)
	}
	first, err := s.FetchIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}

	if err := s.ForceReimport(ctx); err != nil {
		t.Fatalf("second ForceReimport: %v", err)
	}
	second, err := s.FetchIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if first.Rev != second.Rev || first.UpdatedAt != second.UpdatedAt {
		t.Errorf("repeated reimport changed issue state: %+v vs %+v", first, second)
	}
}
