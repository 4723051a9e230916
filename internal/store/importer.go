package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/tissue-vcs/tissue/internal/diag"
	"github.com/tissue-vcs/tissue/internal/jsonl"
)

// reconcile runs spec.md §4.3's decision table against the current log
// identity and the saved watermark, then dispatches to full or incremental
// reimport (or does nothing). It is called once per command invocation, at
// Open/Init time.
func (s *Store) reconcile(ctx context.Context) error {
	cur, err := jsonl.Stat(s.logPath)
	if err != nil {
		return fmt.Errorf("%w: stat log: %v", ErrCacheError, err)
	}
	saved, err := s.loadWatermark()
	if err != nil {
		return err
	}

	switch {
	case saved.Inode != cur.Inode:
		return s.fullReimport(ctx)
	case saved.Offset > cur.Offset:
		return s.fullReimport(ctx)
	case saved.MtimeNs > cur.MtimeNs:
		return s.fullReimport(ctx)
	case cur.Offset == saved.Offset:
		return nil
	default:
		return s.incrementalReimport(ctx, saved.Offset)
	}
}

// ForceReimport exposes an unconditional full reimport (spec.md §6
// "force-reimport"), used by the clean and migrate commands after they
// rewrite or extend the log, and by `tissue doctor` to validate the log
// independent of cache state.
func (s *Store) ForceReimport(ctx context.Context) error {
	return s.fullReimport(ctx)
}

func (s *Store) loadWatermark() (jsonl.Watermark, error) {
	offset, err := loadMetaInt(s.db, metaJSONLOff)
	if err != nil {
		return jsonl.Watermark{}, err
	}
	inode, err := loadMetaUint(s.db, metaJSONLInode)
	if err != nil {
		return jsonl.Watermark{}, err
	}
	mtime, err := loadMetaInt(s.db, metaJSONLMtime)
	if err != nil {
		return jsonl.Watermark{}, err
	}
	return jsonl.Watermark{Offset: offset, Inode: inode, MtimeNs: mtime}, nil
}

func saveWatermark(ctx context.Context, conn execer, wm jsonl.Watermark) error {
	stmts := []struct {
		key string
		val any
	}{
		{metaJSONLOff, wm.Offset},
		{metaJSONLInode, wm.Inode},
		{metaJSONLMtime, wm.MtimeNs},
	}
	for _, st := range stmts {
		if _, err := conn.ExecContext(ctx, `INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`, st.key, fmt.Sprint(st.val)); err != nil {
			return fmt.Errorf("%w: save watermark: %v", ErrCacheError, err)
		}
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Conn, letting import and
// write-path helpers run either ad hoc or inside an active transaction on a
// dedicated connection.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadMetaInt(db *sql.DB, key string) (int64, error) {
	v, err := loadMeta(db, key)
	if err != nil || v == "" {
		return 0, err
	}
	var n int64
	fmt.Sscan(v, &n)
	return n, nil
}

func loadMetaUint(db *sql.DB, key string) (uint64, error) {
	v, err := loadMeta(db, key)
	if err != nil || v == "" {
		return 0, err
	}
	var n uint64
	fmt.Sscan(v, &n)
	return n, nil
}

// fullReimport truncates every content table and the FTS index, commits,
// then runs the incremental importer from offset 0 (spec.md §4.3 "Full
// reimport").
func (s *Store) fullReimport(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("%w: begin: %v", ErrCacheError, err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	for _, tbl := range []string{"issues", "tags", "issue_tags", "comments", "dependencies", "issues_fts"} {
		if _, err := conn.ExecContext(ctx, "DELETE FROM "+tbl); err != nil {
			return fmt.Errorf("%w: truncate %s: %v", ErrCacheError, tbl, err)
		}
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("%w: commit truncate: %v", ErrCacheError, err)
	}
	committed = true

	return s.incrementalReimport(ctx, 0)
}

// incrementalReimport applies every record from offset onward inside one
// immediate transaction, buffering comments until all issue/dep records in
// the batch have been applied (spec.md §4.3), then advances the watermark.
func (s *Store) incrementalReimport(ctx context.Context, offset int64) error {
	if err := s.lock.SharedBlocking(); err != nil {
		return fmt.Errorf("%w: acquire shared lock: %v", ErrCacheError, err)
	}
	lines, consumed, readErr := jsonl.ReadTail(s.logPath, offset)
	_ = s.lock.Unlock()
	if readErr != nil {
		return fmt.Errorf("%w: read log: %v", ErrCacheError, readErr)
	}
	if len(lines) == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("%w: begin: %v", ErrCacheError, err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var bufferedComments []*jsonl.CommentRecord
	for _, line := range lines {
		rec, err := jsonl.Parse(line)
		if err != nil {
			diag.Logf("tissue: skipping malformed log line: %v", err)
			continue
		}
		switch r := rec.(type) {
		case *jsonl.IssueRecord:
			if err := applyIssueRecord(ctx, conn, r); err != nil {
				return err
			}
		case *jsonl.DepRecord:
			if err := applyDepRecord(ctx, conn, r); err != nil {
				return err
			}
		case *jsonl.CommentRecord:
			bufferedComments = append(bufferedComments, r)
		}
	}
	for _, c := range bufferedComments {
		if err := applyCommentRecord(ctx, conn, c); err != nil {
			return err
		}
	}

	newWM := jsonl.Watermark{Offset: offset + consumed, Inode: mustCurrentInode(s.logPath), MtimeNs: mustCurrentMtime(s.logPath)}
	if err := saveWatermark(ctx, conn, newWM); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("%w: commit import: %v", ErrCacheError, err)
	}
	committed = true
	return nil
}

func mustCurrentInode(path string) uint64 {
	wm, err := jsonl.Stat(path)
	if err != nil {
		return 0
	}
	return wm.Inode
}

func mustCurrentMtime(path string) int64 {
	wm, err := jsonl.Stat(path)
	if err != nil {
		return 0
	}
	return wm.MtimeNs
}

// refreshFTS rewrites the full-text row for id from its current title, body,
// and the newline-joined bodies of its comments in chronological order
// (spec.md §4.3's "rewritten from current title, body, and the concatenation
// of all comment bodies").
func refreshFTS(ctx context.Context, conn execer, id string) error {
	var title, body string
	err := conn.QueryRowContext(ctx, `SELECT title, body FROM issues WHERE id = ?`, id).Scan(&title, &body)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}

	rows, err := conn.QueryContext(ctx, `SELECT body FROM comments WHERE issue_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	var bodies []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		bodies = append(bodies, b)
	}
	rows.Close()

	if _, err := conn.ExecContext(ctx, `DELETE FROM issues_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO issues_fts(id, title, body, comments) VALUES (?, ?, ?, ?)`,
		id, title, body, strings.Join(bodies, "\n")); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	return nil
}

// applyIssueRecord implements spec.md §4.3's issue conflict-resolution rule:
// insert if absent; otherwise apply only if the incoming rev is
// byte-lexicographically greater, or equal with a strictly later updated_at.
func applyIssueRecord(ctx context.Context, conn execer, r *jsonl.IssueRecord) error {
	if r.ID == "" {
		diag.Logf("tissue: skipping issue record with empty id")
		return nil
	}
	var storedRev string
	var storedUpdated int64
	err := conn.QueryRowContext(ctx, `SELECT rev, updated_at FROM issues WHERE id = ?`, r.ID).Scan(&storedRev, &storedUpdated)
	switch {
	case err == sql.ErrNoRows:
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO issues(id, title, body, status, priority, created_at, updated_at, rev) VALUES (?,?,?,?,?,?,?,?)`,
			r.ID, r.Title, r.Body, r.Status, r.Priority, r.CreatedAt, r.UpdatedAt, r.Rev); err != nil {
			return fmt.Errorf("%w: insert issue %s: %v", ErrCacheError, r.ID, err)
		}
	case err != nil:
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	default:
		if !(r.Rev > storedRev || (r.Rev == storedRev && r.UpdatedAt > storedUpdated)) {
			return nil
		}
		if _, err := conn.ExecContext(ctx,
			`UPDATE issues SET title=?, body=?, status=?, priority=?, created_at=?, updated_at=?, rev=? WHERE id=?`,
			r.Title, r.Body, r.Status, r.Priority, r.CreatedAt, r.UpdatedAt, r.Rev, r.ID); err != nil {
			return fmt.Errorf("%w: update issue %s: %v", ErrCacheError, r.ID, err)
		}
	}

	if err := replaceTags(ctx, conn, r.ID, r.Tags); err != nil {
		return err
	}
	return refreshFTS(ctx, conn, r.ID)
}

func replaceTags(ctx context.Context, conn execer, issueID string, tags []string) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM issue_tags WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	for _, tag := range sorted {
		if tag == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO tags(tag) VALUES (?)`, tag); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		if _, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO issue_tags(issue_id, tag) VALUES (?, ?)`, issueID, tag); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheError, err)
		}
	}
	return nil
}

// applyDepRecord implements spec.md §4.3's dep conflict-resolution rule:
// the incoming record wins only on a strictly greater rev; tombstones apply
// the same way.
func applyDepRecord(ctx context.Context, conn execer, r *jsonl.DepRecord) error {
	if r.SrcID == "" || r.DstID == "" || r.Kind == "" {
		diag.Logf("tissue: skipping dep record missing required fields")
		return nil
	}
	var storedRev string
	err := conn.QueryRowContext(ctx, `SELECT rev FROM dependencies WHERE src_id=? AND dst_id=? AND kind=?`, r.SrcID, r.DstID, r.Kind).Scan(&storedRev)
	switch {
	case err == sql.ErrNoRows:
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO dependencies(src_id, dst_id, kind, state, created_at, rev) VALUES (?,?,?,?,?,?)`,
			r.SrcID, r.DstID, r.Kind, r.State, r.CreatedAt, r.Rev); err != nil {
			return fmt.Errorf("%w: insert dep: %v", ErrCacheError, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	default:
		if r.Rev <= storedRev {
			return nil
		}
		if _, err := conn.ExecContext(ctx,
			`UPDATE dependencies SET state=?, created_at=?, rev=? WHERE src_id=? AND dst_id=? AND kind=?`,
			r.State, r.CreatedAt, r.Rev, r.SrcID, r.DstID, r.Kind); err != nil {
			return fmt.Errorf("%w: update dep: %v", ErrCacheError, err)
		}
		return nil
	}
}

// applyCommentRecord implements spec.md §4.3's comment conflict-resolution
// rule: insert-or-ignore by id, skip silently if the owning issue is still
// missing after the buffered pass (a genuinely dangling comment).
func applyCommentRecord(ctx context.Context, conn execer, r *jsonl.CommentRecord) error {
	if r.ID == "" || r.IssueID == "" {
		diag.Logf("tissue: skipping comment record missing required fields")
		return nil
	}
	var exists int
	if err := conn.QueryRowContext(ctx, `SELECT 1 FROM issues WHERE id = ?`, r.IssueID).Scan(&exists); err == sql.ErrNoRows {
		return nil
	} else if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheError, err)
	}

	res, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO comments(id, issue_id, body, created_at) VALUES (?,?,?,?)`,
		r.ID, r.IssueID, r.Body, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert comment: %v", ErrCacheError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	return refreshFTS(ctx, conn, r.IssueID)
}
