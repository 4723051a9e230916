package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tissue-vcs/tissue/internal/types"
)

func openTestStore(t *testing.T, prefix string) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Init(dir, prefix)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir, "Acme Corp")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.Prefix() != "acme-corp" {
		t.Errorf("expected normalized prefix acme-corp, got %q", s.Prefix())
	}
	s.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if reopened.Prefix() != "acme-corp" {
		t.Errorf("prefix not persisted across reopen: got %q", reopened.Prefix())
	}
}

func TestOpenMissingStoreFails(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "nope"))
	if !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestInitRejectsUnusablePrefix(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, "!!!"); !errors.Is(err, ErrInvalidPrefix) {
		t.Fatalf("expected ErrInvalidPrefix, got %v", err)
	}
}

func TestCreateIssueIDShape(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	issue, err := s.CreateIssue(ctx, "Fix flake", "", types.DefaultPriority, "", nil)
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if issue.Status != types.StatusOpen {
		t.Errorf("expected default status open, got %s", issue.Status)
	}
	if issue.Priority != types.DefaultPriority {
		t.Errorf("expected default priority, got %d", issue.Priority)
	}
	matched, err := regexpMatchIssueID(issue.ID, "acme")
	if err != nil || !matched {
		t.Errorf("id %q does not match ^acme-[0-9a-z]{8}$", issue.ID)
	}

	listed, err := s.ListIssues(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != issue.ID {
		t.Fatalf("expected list to contain exactly the created issue, got %+v", listed)
	}
}

func regexpMatchIssueID(id, prefix string) (bool, error) {
	suffix := id[len(prefix)+1:]
	if len(id) <= len(prefix)+1 || id[:len(prefix)+1] != prefix+"-" || len(suffix) != 8 {
		return false, nil
	}
	for _, r := range suffix {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'z')) {
			return false, nil
		}
	}
	return true, nil
}

func TestCreateIssueRejectsInvalidPriority(t *testing.T) {
	s := openTestStore(t, "acme")
	if _, err := s.CreateIssue(context.Background(), "t", "", 0, types.StatusOpen, nil); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord for priority 0, got %v", err)
	}
	if _, err := s.CreateIssue(context.Background(), "t", "", 6, types.StatusOpen, nil); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord for out-of-range priority, got %v", err)
	}
	if _, err := s.CreateIssue(context.Background(), "", "", 2, types.StatusOpen, nil); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord for empty title, got %v", err)
	}
}

func TestUpdateIssuePartialAndTagMerge(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	issue, err := s.CreateIssue(ctx, "Original title", "body", 3, types.StatusOpen, []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	newTitle := "New title"
	updated, err := s.UpdateIssue(ctx, issue.ID, IssueUpdate{
		Title:      &newTitle,
		AddTags:    []string{"c", "a"},
		RemoveTags: []string{"a"},
	})
	if err != nil {
		t.Fatalf("UpdateIssue: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("title not updated: %q", updated.Title)
	}
	if updated.Body != "body" {
		t.Errorf("body should be carried forward, got %q", updated.Body)
	}
	// "a" appears in both add and remove: net removal.
	wantTags := []string{"b", "c"}
	if diff := cmp.Diff(wantTags, updated.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if !revtokenGreater(updated.Rev, issue.Rev) {
		t.Errorf("rev should advance on update")
	}
}

func revtokenGreater(a, b string) bool { return a > b }

func TestAddCommentRequiresExistingIssue(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	if _, err := s.AddComment(ctx, "acme-ffffffff", "hello"); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("expected ErrIssueNotFound, got %v", err)
	}

	issue, _ := s.CreateIssue(ctx, "t", "", 2, types.StatusOpen, nil)
	c, err := s.AddComment(ctx, issue.ID, "hello")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	comments, err := s.FetchComments(ctx, issue.ID)
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != c.ID {
		t.Fatalf("expected the added comment to be fetched back, got %+v", comments)
	}
}

func TestAddDepValidation(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	a, _ := s.CreateIssue(ctx, "A", "", 2, types.StatusOpen, nil)

	if _, err := s.AddDep(ctx, a.ID, a.ID, types.DepBlocks); !errors.Is(err, ErrSelfDependency) {
		t.Fatalf("expected ErrSelfDependency, got %v", err)
	}
	if _, err := s.AddDep(ctx, a.ID, "acme-ffffffff", types.DepKind("bogus")); !errors.Is(err, ErrInvalidDepKind) {
		t.Fatalf("expected ErrInvalidDepKind, got %v", err)
	}
}

func TestRelatesDepCanonicalizesAndDedupes(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	a, _ := s.CreateIssue(ctx, "A", "", 2, types.StatusOpen, nil)
	b, _ := s.CreateIssue(ctx, "B", "", 2, types.StatusOpen, nil)

	if _, err := s.AddDep(ctx, a.ID, b.ID, types.DepRelates); err != nil {
		t.Fatalf("AddDep A relates B: %v", err)
	}
	if _, err := s.AddDep(ctx, b.ID, a.ID, types.DepRelates); err != nil {
		t.Fatalf("AddDep B relates A: %v", err)
	}

	deps, err := s.FetchDeps(ctx, a.ID)
	if err != nil {
		t.Fatalf("FetchDeps: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("expected exactly one canonicalized relates edge, got %d", len(deps))
	}
}

func TestRemoveDepTombstonesRatherThanDeletes(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	a, _ := s.CreateIssue(ctx, "A", "", 2, types.StatusOpen, nil)
	b, _ := s.CreateIssue(ctx, "B", "", 2, types.StatusOpen, nil)
	if _, err := s.AddDep(ctx, a.ID, b.ID, types.DepBlocks); err != nil {
		t.Fatalf("AddDep: %v", err)
	}
	if err := s.RemoveDep(ctx, a.ID, b.ID, types.DepBlocks); err != nil {
		t.Fatalf("RemoveDep: %v", err)
	}
	deps, err := s.FetchDeps(ctx, a.ID)
	if err != nil {
		t.Fatalf("FetchDeps: %v", err)
	}
	if len(deps) != 0 {
		t.Fatalf("expected no active deps after removal, got %+v", deps)
	}
}

func TestListReadyTransitiveBlocking(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	a, _ := s.CreateIssue(ctx, "A", "", 2, types.StatusOpen, nil)
	b, _ := s.CreateIssue(ctx, "B", "", 2, types.StatusOpen, nil)
	c, _ := s.CreateIssue(ctx, "C", "", 2, types.StatusOpen, nil)
	if _, err := s.AddDep(ctx, a.ID, b.ID, types.DepBlocks); err != nil {
		t.Fatalf("AddDep A blocks B: %v", err)
	}
	if _, err := s.AddDep(ctx, b.ID, c.ID, types.DepBlocks); err != nil {
		t.Fatalf("AddDep B blocks C: %v", err)
	}

	ready, err := s.ListReady(ctx, 0)
	if err != nil {
		t.Fatalf("ListReady: %v", err)
	}
	assertReadySet(t, ready, a.ID)

	closedStatus := types.StatusClosed
	if _, err := s.UpdateIssue(ctx, a.ID, IssueUpdate{Status: &closedStatus}); err != nil {
		t.Fatalf("UpdateIssue close A: %v", err)
	}
	ready, err = s.ListReady(ctx, 0)
	if err != nil {
		t.Fatalf("ListReady: %v", err)
	}
	assertReadySet(t, ready, b.ID)

	if _, err := s.UpdateIssue(ctx, b.ID, IssueUpdate{Status: &closedStatus}); err != nil {
		t.Fatalf("UpdateIssue close B: %v", err)
	}
	ready, err = s.ListReady(ctx, 0)
	if err != nil {
		t.Fatalf("ListReady: %v", err)
	}
	assertReadySet(t, ready, c.ID)
}

func assertReadySet(t *testing.T, ready []*types.Issue, wantID string) {
	t.Helper()
	if len(ready) != 1 || ready[0].ID != wantID {
		t.Fatalf("expected ready set {%s}, got %+v", wantID, ready)
	}
}

func TestResolveIDExactPrefixAndInvalidInput(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	issue, _ := s.CreateIssue(ctx, "A", "", 2, types.StatusOpen, nil)

	got, err := s.ResolveID(ctx, issue.ID)
	if err != nil || got != issue.ID {
		t.Fatalf("exact resolve failed: %v, %q", err, got)
	}
	got, err = s.ResolveID(ctx, issue.ID[:len(issue.ID)-2])
	if err != nil || got != issue.ID {
		t.Fatalf("prefix resolve failed: %v, %q", err, got)
	}
	if _, err := s.ResolveID(ctx, "!!!"); !errors.Is(err, ErrInvalidIDPrefix) {
		t.Fatalf("expected ErrInvalidIDPrefix, got %v", err)
	}
}
