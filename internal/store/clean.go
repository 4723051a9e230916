package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/tissue-vcs/tissue/internal/jsonl"
	"github.com/tissue-vcs/tissue/internal/types"
)

// CleanCandidates implements the dry-run leg of spec.md §4.6 "Clean": every
// terminal-status issue, optionally bounded by updated_at older than
// olderThan (zero means unbounded).
func (s *Store) CleanCandidates(ctx context.Context, olderThan time.Duration) ([]*types.Issue, error) {
	query := `SELECT id, title, body, status, priority, created_at, updated_at, rev FROM issues WHERE status IN ('closed', 'duplicate')`
	args := []any{}
	if olderThan > 0 {
		cutoff := time.Now().Add(-olderThan).UnixMilli()
		query += " AND updated_at < ?"
		args = append(args, cutoff)
	}
	query += " ORDER BY updated_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer rows.Close()

	var out []*types.Issue
	for rows.Next() {
		var issue types.Issue
		var status string
		if err := rows.Scan(&issue.ID, &issue.Title, &issue.Body, &status, &issue.Priority, &issue.CreatedAt, &issue.UpdatedAt, &issue.Rev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		issue.Status = types.Status(status)
		out = append(out, &issue)
	}
	return out, rows.Err()
}

// Clean implements the force leg of spec.md §4.6 "Clean": rewrites the log
// to omit every issue in the removal set and its comments/deps, preserving
// the relative order of surviving lines, then forces a reimport.
func (s *Store) Clean(ctx context.Context, olderThan time.Duration) (removed []*types.Issue, err error) {
	candidates, err := s.CleanCandidates(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	removeSet := make(map[string]struct{}, len(candidates))
	for _, issue := range candidates {
		removeSet[issue.ID] = struct{}{}
	}

	if err := s.lock.ExclusiveBlocking(); err != nil {
		return nil, fmt.Errorf("%w: acquire exclusive lock: %v", ErrCacheError, err)
	}

	lines, _, err := jsonl.ReadAll(s.logPath)
	if err != nil {
		s.lock.Unlock()
		return nil, fmt.Errorf("%w: read log: %v", ErrCacheError, err)
	}

	var keep [][]byte
	for _, line := range lines {
		rec, perr := jsonl.Parse(line)
		if perr != nil {
			// A line the importer would also skip is preserved verbatim;
			// clean only removes lines it can positively identify.
			keep = append(keep, withNewline(line))
			continue
		}
		drop := false
		switch r := rec.(type) {
		case *jsonl.IssueRecord:
			_, drop = removeSet[r.ID]
		case *jsonl.CommentRecord:
			_, drop = removeSet[r.IssueID]
		case *jsonl.DepRecord:
			_, srcDrop := removeSet[r.SrcID]
			_, dstDrop := removeSet[r.DstID]
			drop = srcDrop || dstDrop
		}
		if !drop {
			keep = append(keep, withNewline(line))
		}
	}

	rewriteErr := jsonl.Rewrite(s.logPath, keep)
	s.lock.Unlock()
	if rewriteErr != nil {
		return nil, fmt.Errorf("%w: rewrite log: %v", ErrCacheError, rewriteErr)
	}

	if err := s.ForceReimport(ctx); err != nil {
		return nil, err
	}
	return candidates, nil
}

func withNewline(line []byte) []byte {
	out := make([]byte, 0, len(line)+1)
	out = append(out, bytes.TrimRight(line, "\n")...)
	out = append(out, '\n')
	return out
}
