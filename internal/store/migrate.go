package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tissue-vcs/tissue/internal/jsonl"
)

// MigrateResult reports the counts spec.md §4.6 "Migrate" requires in
// dry-run mode, and is also returned (with the same meaning) after a real
// migration.
type MigrateResult struct {
	IssuesAdded     int
	DepsAdded       int
	CommentsAdded   int
	IssuesSkipped   int
	DepsSkipped     int
	CommentsSkipped int
}

type depKey struct{ src, dst, kind string }

// Migrate implements spec.md §4.6 "Migrate": reads srcDir's log, skips
// records that already exist in the destination (or have already been seen
// in this migration), requires both dep endpoints to exist-or-be-migrated,
// and — unless dryRun — appends the surviving records to this store's log in
// order issues, deps, comments, then forces a reimport.
func (s *Store) Migrate(ctx context.Context, srcDir string, dryRun bool) (*MigrateResult, error) {
	srcLogPath := filepath.Join(srcDir, LogFileName)
	lines, _, err := jsonl.ReadAll(srcLogPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read source log: %v", ErrCacheError, err)
	}

	existingIssues, err := s.allIDs(ctx, `SELECT id FROM issues`)
	if err != nil {
		return nil, err
	}
	existingComments, err := s.allIDs(ctx, `SELECT id FROM comments`)
	if err != nil {
		return nil, err
	}
	existingDeps, err := s.allDepKeys(ctx)
	if err != nil {
		return nil, err
	}

	result := &MigrateResult{}
	var issueRecs, depRecs, commentRecs []any
	migratedIssues := make(map[string]struct{})

	for _, line := range lines {
		rec, err := jsonl.Parse(line)
		if err != nil {
			continue // malformed source lines are skipped, same as the importer
		}
		switch r := rec.(type) {
		case *jsonl.IssueRecord:
			if _, ok := existingIssues[r.ID]; ok {
				result.IssuesSkipped++
				continue
			}
			if _, ok := migratedIssues[r.ID]; ok {
				result.IssuesSkipped++
				continue
			}
			issueRecs = append(issueRecs, r)
			migratedIssues[r.ID] = struct{}{}
			result.IssuesAdded++
		case *jsonl.DepRecord:
			key := depKey{r.SrcID, r.DstID, r.Kind}
			if _, ok := existingDeps[key]; ok {
				result.DepsSkipped++
				continue
			}
			_, srcOK := existingIssues[r.SrcID]
			if !srcOK {
				_, srcOK = migratedIssues[r.SrcID]
			}
			_, dstOK := existingIssues[r.DstID]
			if !dstOK {
				_, dstOK = migratedIssues[r.DstID]
			}
			if !srcOK || !dstOK {
				result.DepsSkipped++
				continue
			}
			depRecs = append(depRecs, r)
			existingDeps[key] = struct{}{}
			result.DepsAdded++
		case *jsonl.CommentRecord:
			if _, ok := existingComments[r.ID]; ok {
				result.CommentsSkipped++
				continue
			}
			commentRecs = append(commentRecs, r)
			existingComments[r.ID] = struct{}{}
			result.CommentsAdded++
		}
	}

	if dryRun {
		return result, nil
	}

	batch := append(append(issueRecs, depRecs...), commentRecs...)
	if len(batch) == 0 {
		return result, nil
	}

	if err := s.lock.ExclusiveBlocking(); err != nil {
		return nil, fmt.Errorf("%w: acquire exclusive lock: %v", ErrCacheError, err)
	}
	_, appendErr := jsonl.AppendBatch(s.logPath, batch)
	s.lock.Unlock()
	if appendErr != nil {
		return nil, fmt.Errorf("%w: append migrated records: %v", ErrCacheError, appendErr)
	}

	if err := s.ForceReimport(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) allIDs(ctx context.Context, query string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) allDepKeys(ctx context.Context) (map[depKey]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT src_id, dst_id, kind FROM dependencies`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer rows.Close()
	out := make(map[depKey]struct{})
	for rows.Next() {
		var k depKey
		if err := rows.Scan(&k.src, &k.dst, &k.kind); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}
