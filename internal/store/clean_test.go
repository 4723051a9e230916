package store

import (
	"context"
	"errors"
	"testing"

	"github.com/tissue-vcs/tissue/internal/types"
)

func TestCleanRemovesTerminalIssuesAndReferences(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()

	closedIssue, err := s.CreateIssue(ctx, "Done", "", 2, types.StatusOpen, nil)
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if _, err := s.AddComment(ctx, closedIssue.ID, "note"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	openIssue, err := s.CreateIssue(ctx, "Still open", "", 2, types.StatusOpen, nil)
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if _, err := s.AddDep(ctx, closedIssue.ID, openIssue.ID, types.DepBlocks); err != nil {
		t.Fatalf("AddDep: %v", err)
	}

	closedStatus := types.StatusClosed
	if _, err := s.UpdateIssue(ctx, closedIssue.ID, IssueUpdate{Status: &closedStatus}); err != nil {
		t.Fatalf("UpdateIssue: %v", err)
	}

	candidates, err := s.CleanCandidates(ctx, 0)
	if err != nil {
		t.Fatalf("CleanCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != closedIssue.ID {
		t.Fatalf("expected exactly the closed issue as a candidate, got %+v", candidates)
	}

	removed, err := s.Clean(ctx, 0)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != closedIssue.ID {
		t.Fatalf("expected Clean to report the closed issue, got %+v", removed)
	}

	if _, err := s.FetchIssue(ctx, closedIssue.ID); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("expected closed issue gone after clean, got %v", err)
	}
	deps, err := s.FetchDeps(ctx, openIssue.ID)
	if err != nil {
		t.Fatalf("FetchDeps: %v", err)
	}
	if len(deps) != 0 {
		t.Fatalf("expected no dangling dep referencing removed issue, got %+v", deps)
	}

	// Force a full reimport from the rewritten log to confirm the removal is
	// durable, not just an in-memory cache effect.
	if err := s.ForceReimport(ctx); err != nil {
		t.Fatalf("ForceReimport: %v", err)
	}
	if _, err := s.FetchIssue(ctx, closedIssue.ID); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("removed issue reappeared after reimport: %v", err)
	}
	if _, err := s.FetchIssue(ctx, openIssue.ID); err != nil {
		t.Fatalf("surviving issue lost after clean+reimport: %v", err)
	}
}

func TestCleanNoCandidatesIsNoop(t *testing.T) {
	s := openTestStore(t, "acme")
	ctx := context.Background()
	if _, err := s.CreateIssue(ctx, "Open", "", 2, types.StatusOpen, nil); err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	removed, err := s.Clean(ctx, 0)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if removed != nil {
		t.Fatalf("expected no-op Clean to report nothing removed, got %+v", removed)
	}
}
