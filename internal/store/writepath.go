package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"

	"github.com/tissue-vcs/tissue/internal/idgen"
	"github.com/tissue-vcs/tissue/internal/jsonl"
	"github.com/tissue-vcs/tissue/internal/types"
)

// Retry bounds for spec.md §4.4 "Contention handling": a short loop around
// the immediate-transaction acquisition itself, and a coarser loop around
// the entire seven-step write operation (cache mutation + log append).
const (
	fineRetryMin      = 50 * time.Millisecond
	fineRetryMax      = 500 * time.Millisecond
	fineRetryAttempts = 10

	coarseRetryMin      = 10 * time.Millisecond
	coarseRetryMax      = 200 * time.Millisecond
	coarseRetryAttempts = 50
)

func jitterSleep(min, max time.Duration) {
	span := max - min
	d := min
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span) + 1)) // #nosec G404 -- backoff jitter, not security sensitive
	}
	time.Sleep(d)
}

// isBusy reports whether err represents cache or lock contention that a
// retry might resolve, rather than a genuine failure.
func isBusy(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.BUSY || code == sqlite3.LOCKED
	}
	return false
}

// beginImmediate acquires a dedicated connection and issues BEGIN IMMEDIATE,
// retrying on contention per the fine-grained bound. Grounded on
// _examples/yashwanth-reddy909-beads/internal/storage/sqlite/sqlite.go's
// dedicated-Conn + raw BEGIN IMMEDIATE idiom (database/sql's BeginTx cannot
// express a transaction mode against this driver).
func beginImmediate(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	var lastErr error
	for attempt := 0; attempt < fineRetryAttempts; attempt++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return conn, nil
		}
		if !isBusy(err) {
			conn.Close()
			return nil, fmt.Errorf("%w: begin: %v", ErrCacheError, err)
		}
		lastErr = err
		jitterSleep(fineRetryMin, fineRetryMax)
	}
	conn.Close()
	return nil, fmt.Errorf("%w: begin immediate exhausted retries: %v", ErrDatabaseBusy, lastErr)
}

// withWriteRetry runs op — a full create/update/comment/dep operation —
// under the coarse retry loop, surfacing ErrDatabaseBusy only once every
// attempt has failed on contention.
func withWriteRetry(op func() error) error {
	var lastErr error
	for attempt := 0; attempt < coarseRetryAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDatabaseBusy) && !isBusy(err) {
			return err
		}
		lastErr = err
		jitterSleep(coarseRetryMin, coarseRetryMax)
	}
	return fmt.Errorf("%w: %v", ErrDatabaseBusy, lastErr)
}

// appendUnderLock runs the log-append step of spec.md §4.4 step 5: acquire
// the exclusive lock, append+fsync, update the cache watermark, release.
func appendUnderLock(ctx context.Context, s *Store, conn execer, rec any) error {
	if err := s.lock.ExclusiveBlocking(); err != nil {
		return fmt.Errorf("%w: acquire exclusive lock: %v", ErrCacheError, err)
	}
	defer s.lock.Unlock()

	wm, err := jsonl.AppendLine(s.logPath, rec)
	if err != nil {
		return fmt.Errorf("%w: append log: %v", ErrCacheError, err)
	}
	return saveWatermark(ctx, conn, wm)
}

// CreateIssue implements spec.md §4.4/§6 "create-issue". Status defaults to
// types.StatusOpen when empty. Callers that want the default priority must
// pass types.DefaultPriority explicitly: 0 is a rejected value (spec.md §8),
// not a sentinel for "unset".
func (s *Store) CreateIssue(ctx context.Context, title, body string, priority int, status types.Status, tags []string) (*types.Issue, error) {
	if status == "" {
		status = types.StatusOpen
	}
	if err := types.ValidateIssue(title, priority, status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	tags = types.NormalizeTags(tags)

	var issue *types.Issue
	err := withWriteRetry(func() error {
		now := s.revGen.Next()
		nowMs := time.Now().UnixMilli()

		conn, err := beginImmediate(ctx, s.db)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
			conn.Close()
		}()

		exists := func(id string) (bool, error) {
			var n int
			err := conn.QueryRowContext(ctx, `SELECT 1 FROM issues WHERE id = ?`, id).Scan(&n)
			if err == sql.ErrNoRows {
				return false, nil
			}
			if err != nil {
				return false, fmt.Errorf("%w: %v", ErrCacheError, err)
			}
			return true, nil
		}
		id, err := idgen.MintIssueID(s.prefix, title, body, nowMs, exists)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIssueIDCollision, err)
		}

		if _, err := conn.ExecContext(ctx,
			`INSERT INTO issues(id, title, body, status, priority, created_at, updated_at, rev) VALUES (?,?,?,?,?,?,?,?)`,
			id, title, body, string(status), priority, nowMs, nowMs, now); err != nil {
			return fmt.Errorf("%w: insert issue: %v", ErrCacheError, err)
		}
		if err := replaceTags(ctx, conn, id, tags); err != nil {
			return err
		}
		if err := refreshFTS(ctx, conn, id); err != nil {
			return err
		}

		rec := &jsonl.IssueRecord{
			Type: jsonl.TypeIssue, ID: id, Rev: now, Title: title, Body: body,
			Status: string(status), Priority: priority, Tags: tags,
			CreatedAt: nowMs, UpdatedAt: nowMs,
		}
		if err := appendUnderLock(ctx, s, conn, rec); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("%w: commit: %v", ErrCacheError, err)
		}
		committed = true

		issue = &types.Issue{ID: id, Title: title, Body: body, Status: status, Priority: priority, Tags: tags, CreatedAt: nowMs, UpdatedAt: nowMs, Rev: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// IssueUpdate carries the partial-update fields for UpdateIssue; nil fields
// are left unchanged (spec.md §4.4 "Update semantics").
type IssueUpdate struct {
	Title      *string
	Body       *string
	Status     *types.Status
	Priority   *int
	AddTags    []string
	RemoveTags []string
}

// UpdateIssue implements spec.md §6 "update-issue". id must already be
// resolved to an exact issue id by the caller (see ResolveID).
func (s *Store) UpdateIssue(ctx context.Context, id string, upd IssueUpdate) (*types.Issue, error) {
	var issue *types.Issue
	err := withWriteRetry(func() error {
		conn, err := beginImmediate(ctx, s.db)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
			conn.Close()
		}()

		var title, body, status string
		var priority int
		var createdAt int64
		var currentTags []string
		err = conn.QueryRowContext(ctx, `SELECT title, body, status, priority, created_at FROM issues WHERE id = ?`, id).
			Scan(&title, &body, &status, &priority, &createdAt)
		if err == sql.ErrNoRows {
			return ErrIssueNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		currentTags, err = issueTagsTx(ctx, conn, id)
		if err != nil {
			return err
		}

		if upd.Title != nil {
			title = *upd.Title
		}
		if upd.Body != nil {
			body = *upd.Body
		}
		if upd.Status != nil {
			status = string(*upd.Status)
		}
		if upd.Priority != nil {
			priority = *upd.Priority
		}
		if err := types.ValidateIssue(title, priority, types.Status(status)); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		tags := types.MergeTags(currentTags, upd.AddTags, upd.RemoveTags)

		now := s.revGen.Next()
		nowMs := time.Now().UnixMilli()
		if nowMs < createdAt {
			nowMs = createdAt
		}

		if _, err := conn.ExecContext(ctx,
			`UPDATE issues SET title=?, body=?, status=?, priority=?, updated_at=?, rev=? WHERE id=?`,
			title, body, status, priority, nowMs, now, id); err != nil {
			return fmt.Errorf("%w: update issue: %v", ErrCacheError, err)
		}
		if err := replaceTags(ctx, conn, id, tags); err != nil {
			return err
		}
		if err := refreshFTS(ctx, conn, id); err != nil {
			return err
		}

		rec := &jsonl.IssueRecord{
			Type: jsonl.TypeIssue, ID: id, Rev: now, Title: title, Body: body,
			Status: status, Priority: priority, Tags: tags,
			CreatedAt: createdAt, UpdatedAt: nowMs,
		}
		if err := appendUnderLock(ctx, s, conn, rec); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("%w: commit: %v", ErrCacheError, err)
		}
		committed = true

		issue = &types.Issue{ID: id, Title: title, Body: body, Status: types.Status(status), Priority: priority, Tags: tags, CreatedAt: createdAt, UpdatedAt: nowMs, Rev: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func issueTagsTx(ctx context.Context, conn execer, issueID string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `SELECT tag FROM issue_tags WHERE issue_id = ? ORDER BY tag`, issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// AddComment implements spec.md §6 "add-comment". Comments are immutable
// once written (spec.md §3).
func (s *Store) AddComment(ctx context.Context, issueID, body string) (*types.Comment, error) {
	var comment *types.Comment
	err := withWriteRetry(func() error {
		conn, err := beginImmediate(ctx, s.db)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
			conn.Close()
		}()

		var exists int
		if err := conn.QueryRowContext(ctx, `SELECT 1 FROM issues WHERE id = ?`, issueID).Scan(&exists); err == sql.ErrNoRows {
			return ErrIssueNotFound
		} else if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheError, err)
		}

		id := s.revGen.Next()
		nowMs := time.Now().UnixMilli()

		if _, err := conn.ExecContext(ctx, `INSERT INTO comments(id, issue_id, body, created_at) VALUES (?,?,?,?)`,
			id, issueID, body, nowMs); err != nil {
			return fmt.Errorf("%w: insert comment: %v", ErrCacheError, err)
		}
		if err := refreshFTS(ctx, conn, issueID); err != nil {
			return err
		}

		rec := &jsonl.CommentRecord{Type: jsonl.TypeComment, ID: id, IssueID: issueID, Body: body, CreatedAt: nowMs}
		if err := appendUnderLock(ctx, s, conn, rec); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("%w: commit: %v", ErrCacheError, err)
		}
		committed = true

		comment = &types.Comment{ID: id, IssueID: issueID, Body: body, CreatedAt: nowMs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// AddDep implements spec.md §6 "add-dep", including relates canonicalization
// and self-dependency rejection.
func (s *Store) AddDep(ctx context.Context, srcID, dstID string, kind types.DepKind) (*types.Dependency, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidDepKind
	}
	if srcID == dstID {
		return nil, ErrSelfDependency
	}
	dep := &types.Dependency{SrcID: srcID, DstID: dstID, Kind: kind, State: types.DepActive}
	dep.Canonicalize()

	var result *types.Dependency
	err := withWriteRetry(func() error {
		conn, err := beginImmediate(ctx, s.db)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
			conn.Close()
		}()

		for _, id := range []string{dep.SrcID, dep.DstID} {
			var exists int
			if err := conn.QueryRowContext(ctx, `SELECT 1 FROM issues WHERE id = ?`, id).Scan(&exists); err == sql.ErrNoRows {
				return ErrIssueNotFound
			} else if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheError, err)
			}
		}

		now := s.revGen.Next()
		nowMs := time.Now().UnixMilli()

		var storedRev string
		err = conn.QueryRowContext(ctx, `SELECT rev FROM dependencies WHERE src_id=? AND dst_id=? AND kind=?`,
			dep.SrcID, dep.DstID, dep.Kind).Scan(&storedRev)
		switch {
		case err == sql.ErrNoRows:
			if _, err := conn.ExecContext(ctx,
				`INSERT INTO dependencies(src_id, dst_id, kind, state, created_at, rev) VALUES (?,?,?,?,?,?)`,
				dep.SrcID, dep.DstID, string(dep.Kind), string(types.DepActive), nowMs, now); err != nil {
				return fmt.Errorf("%w: insert dep: %v", ErrCacheError, err)
			}
			dep.CreatedAt, dep.Rev = nowMs, now
		case err != nil:
			return fmt.Errorf("%w: %v", ErrCacheError, err)
		default:
			// Already present (active or tombstoned); re-activating is still a
			// fresh write so later writers converge on the same rev ordering.
			if _, err := conn.ExecContext(ctx,
				`UPDATE dependencies SET state=?, rev=? WHERE src_id=? AND dst_id=? AND kind=?`,
				string(types.DepActive), now, dep.SrcID, dep.DstID, dep.Kind); err != nil {
				return fmt.Errorf("%w: update dep: %v", ErrCacheError, err)
			}
			dep.Rev = now
		}

		rec := &jsonl.DepRecord{Type: jsonl.TypeDep, SrcID: dep.SrcID, DstID: dep.DstID, Kind: string(dep.Kind), State: string(types.DepActive), CreatedAt: dep.CreatedAt, Rev: now}
		if err := appendUnderLock(ctx, s, conn, rec); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("%w: commit: %v", ErrCacheError, err)
		}
		committed = true
		result = dep
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveDep writes a tombstone for the given edge (spec.md §3 "soft-delete
// only"). It is a no-op error-free success if the edge is already removed or
// never existed with content to remove — spec.md does not require
// IssueNotFound here since a missing edge and an absent issue both resolve
// to "nothing to do."
func (s *Store) RemoveDep(ctx context.Context, srcID, dstID string, kind types.DepKind) error {
	if !kind.IsValid() {
		return ErrInvalidDepKind
	}
	dep := &types.Dependency{SrcID: srcID, DstID: dstID, Kind: kind}
	dep.Canonicalize()

	return withWriteRetry(func() error {
		conn, err := beginImmediate(ctx, s.db)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
			conn.Close()
		}()

		now := s.revGen.Next()

		var createdAt int64
		var state string
		err = conn.QueryRowContext(ctx, `SELECT created_at, state FROM dependencies WHERE src_id=? AND dst_id=? AND kind=?`,
			dep.SrcID, dep.DstID, dep.Kind).Scan(&createdAt, &state)
		if err == sql.ErrNoRows || (err == nil && state == string(types.DepRemoved)) {
			return nil
		} else if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheError, err)
		}

		if _, err := conn.ExecContext(ctx,
			`INSERT INTO dependencies(src_id, dst_id, kind, state, created_at, rev) VALUES (?,?,?,?,?,?)
			 ON CONFLICT(src_id, dst_id, kind) DO UPDATE SET state=excluded.state, rev=excluded.rev`,
			dep.SrcID, dep.DstID, string(dep.Kind), string(types.DepRemoved), createdAt, now); err != nil {
			return fmt.Errorf("%w: tombstone dep: %v", ErrCacheError, err)
		}

		rec := &jsonl.DepRecord{Type: jsonl.TypeDep, SrcID: dep.SrcID, DstID: dep.DstID, Kind: string(dep.Kind), State: string(types.DepRemoved), CreatedAt: createdAt, Rev: now}
		if err := appendUnderLock(ctx, s, conn, rec); err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("%w: commit: %v", ErrCacheError, err)
		}
		committed = true
		return nil
	})
}
