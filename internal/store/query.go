package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tissue-vcs/tissue/internal/idgen"
	"github.com/tissue-vcs/tissue/internal/types"
)

// ResolveID implements spec.md §4.1 "Id lookup resolution": exact match,
// then unique prefix match, then (only for hyphen-free input) unique
// hash-suffix match.
func (s *Store) ResolveID(ctx context.Context, input string) (string, error) {
	if !idgen.ValidLookupInput(input) {
		return "", wrapErr("ResolveID", input, ErrInvalidIDPrefix)
	}

	var exact int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM issues WHERE id = ?`, input).Scan(&exact)
	if err == nil {
		return input, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("%w: %v", ErrCacheError, err)
	}

	ids, err := queryIDs(ctx, s.db, `SELECT id FROM issues WHERE id LIKE ? || '%'`, input)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 1:
		return ids[0], nil
	default:
		if len(ids) > 1 {
			return "", wrapErr("ResolveID", input, ErrIssueIDAmbiguous)
		}
	}

	if strings.Contains(input, "-") {
		return "", wrapErr("ResolveID", input, ErrIssueNotFound)
	}
	suffixed, err := queryIDs(ctx, s.db, `SELECT id FROM issues WHERE id LIKE '%-' || ? || '%'`, input)
	if err != nil {
		return "", err
	}
	var matches []string
	lowerInput := strings.ToLower(input)
	for _, id := range suffixed {
		if strings.HasPrefix(strings.ToLower(idgen.HashSuffix(id)), lowerInput) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", wrapErr("ResolveID", input, ErrIssueNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", wrapErr("ResolveID", input, ErrIssueIDAmbiguous)
	}
}

func queryIDs(ctx context.Context, db *sql.DB, query string, arg string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchIssue implements spec.md §6 "fetch-issue".
func (s *Store) FetchIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, err := fetchIssueTx(ctx, s.db, id)
	if err != nil {
		return nil, wrapErr("FetchIssue", id, err)
	}
	return issue, nil
}

func fetchIssueTx(ctx context.Context, conn execer, id string) (*types.Issue, error) {
	var issue types.Issue
	var status string
	row := conn.QueryRowContext(ctx, `SELECT id, title, body, status, priority, created_at, updated_at, rev FROM issues WHERE id = ?`, id)
	if err := row.Scan(&issue.ID, &issue.Title, &issue.Body, &status, &issue.Priority, &issue.CreatedAt, &issue.UpdatedAt, &issue.Rev); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrIssueNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	issue.Status = types.Status(status)
	tags, err := issueTagsTx(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	issue.Tags = tags
	return &issue, nil
}

// FetchComments implements spec.md §6 "fetch-comments": ascending by
// created_at (spec.md §4.5 "Show").
func (s *Store) FetchComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, issue_id, body, created_at FROM comments WHERE issue_id = ? ORDER BY created_at ASC, id ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer rows.Close()
	var out []*types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// FetchDeps implements spec.md §6 "fetch-deps": active deps where id is
// either source or destination, ordered by kind then created_at (spec.md
// §4.5 "Show").
func (s *Store) FetchDeps(ctx context.Context, id string) ([]*types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT src_id, dst_id, kind, state, created_at, rev FROM dependencies
		 WHERE (src_id = ? OR dst_id = ?) AND state = 'active'
		 ORDER BY kind ASC, created_at ASC`, id, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	defer rows.Close()
	var out []*types.Dependency
	for rows.Next() {
		var d types.Dependency
		var kind, state string
		if err := rows.Scan(&d.SrcID, &d.DstID, &kind, &state, &d.CreatedAt, &d.Rev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
		}
		d.Kind, d.State = types.DepKind(kind), types.DepState(state)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ListFilter collects the optional filters for ListIssues (spec.md §4.5
// "Listing").
type ListFilter struct {
	Status *types.Status
	Tag    string
	Search string
	Limit  int
}

// ListIssues implements spec.md §4.5 "Listing". When Search is set, results
// are ranked by bm25(1.0, 0.5, 0.25) ascending (title, body, comments) tied
// on updated_at descending; otherwise plain updated_at descending.
func (s *Store) ListIssues(ctx context.Context, f ListFilter) ([]*types.Issue, error) {
	var b strings.Builder
	var args []any

	if f.Search != "" {
		b.WriteString(`SELECT i.id, i.title, i.body, i.status, i.priority, i.created_at, i.updated_at, i.rev
			FROM issues i JOIN issues_fts fts ON fts.id = i.id
			WHERE issues_fts MATCH ?`)
		args = append(args, f.Search)
	} else {
		b.WriteString(`SELECT i.id, i.title, i.body, i.status, i.priority, i.created_at, i.updated_at, i.rev FROM issues i WHERE 1=1`)
	}

	if f.Status != nil {
		b.WriteString(" AND i.status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Tag != "" {
		b.WriteString(" AND i.id IN (SELECT issue_id FROM issue_tags WHERE tag = ?)")
		args = append(args, f.Tag)
	}

	if f.Search != "" {
		b.WriteString(" ORDER BY bm25(issues_fts, 1.0, 0.5, 0.25) ASC, i.updated_at DESC")
	} else {
		b.WriteString(" ORDER BY i.updated_at DESC")
	}
	if f.Limit > 0 {
		b.WriteString(fmt.Sprintf(" LIMIT %d", f.Limit))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	for _, issue := range out {
		tags, err := issueTagsTx(ctx, s.db, issue.ID)
		if err != nil {
			return nil, err
		}
		issue.Tags = tags
	}
	return out, nil
}

// ListReady implements spec.md §4.5 "Ready query": open issues with no
// transitive active blocker, ordered by priority ascending then updated_at
// descending, via the ready_issues view (schema.go).
func (s *Store) ListReady(ctx context.Context, limit int) ([]*types.Issue, error) {
	query := `SELECT id, title, body, status, priority, created_at, updated_at, rev FROM ready_issues ORDER BY priority ASC, updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheError, err)
	}
	for _, issue := range out {
		tags, err := issueTagsTx(ctx, s.db, issue.ID)
		if err != nil {
			return nil, err
		}
		issue.Tags = tags
	}
	return out, nil
}
