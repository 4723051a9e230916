package jsonl

import (
	"path/filepath"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	rec := &IssueRecord{
		Type: TypeIssue, ID: "acme-a1b2c3d4", Rev: "r1", Title: "t", Body: "b",
		Status: "open", Priority: 2, Tags: []string{"a"}, CreatedAt: 1, UpdatedAt: 1,
	}
	line, err := Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Parse(line)
	if err != nil {
		t.Fatal(err)
	}
	ir, ok := got.(*IssueRecord)
	if !ok {
		t.Fatalf("expected *IssueRecord, got %T", got)
	}
	if ir.ID != rec.ID || ir.Title != rec.Title {
		t.Errorf("round trip mismatch: %+v", ir)
	}
}

func TestParseRejectsNonObject(t *testing.T) {
	if _, err := Parse([]byte(`"just a string"`)); err == nil {
		t.Error("expected error for non-object top level")
	}
	if _, err := Parse([]byte(`not json at all`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	if _, err := Parse([]byte(`{"type":"bogus"}`)); err == nil {
		t.Error("expected error for unknown record type")
	}
}

func TestAppendAndReadTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	rec1 := &IssueRecord{Type: TypeIssue, ID: "a-1", Rev: "r1", Title: "one", Status: "open", Priority: 2, CreatedAt: 1, UpdatedAt: 1}
	wm1, err := AppendLine(path, rec1)
	if err != nil {
		t.Fatal(err)
	}

	rec2 := &IssueRecord{Type: TypeIssue, ID: "a-2", Rev: "r2", Title: "two", Status: "open", Priority: 2, CreatedAt: 2, UpdatedAt: 2}
	if _, err := AppendLine(path, rec2); err != nil {
		t.Fatal(err)
	}

	lines, consumed, err := ReadTail(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if consumed <= wm1.Offset {
		t.Errorf("expected consumed (%d) to cover both lines past first offset (%d)", consumed, wm1.Offset)
	}

	// Incremental read from the first watermark should yield only the second line.
	tailLines, _, err := ReadTail(path, wm1.Offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(tailLines) != 1 {
		t.Fatalf("expected 1 line from offset, got %d", len(tailLines))
	}
	got, err := Parse(tailLines[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.(*IssueRecord).ID != "a-2" {
		t.Errorf("expected second record, got %+v", got)
	}
}

func TestRewriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	if _, err := AppendLine(path, &IssueRecord{Type: TypeIssue, ID: "a-1", Status: "open"}); err != nil {
		t.Fatal(err)
	}
	if _, err := AppendLine(path, &IssueRecord{Type: TypeIssue, ID: "a-2", Status: "closed"}); err != nil {
		t.Fatal(err)
	}

	lines, _, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	var keep [][]byte
	for _, l := range lines {
		rec, _ := Parse(l)
		if rec.(*IssueRecord).ID == "a-1" {
			keep = append(keep, append(append([]byte{}, l...), '\n'))
		}
	}
	if err := Rewrite(path, keep); err != nil {
		t.Fatal(err)
	}

	after, _, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Fatalf("expected 1 surviving line, got %d", len(after))
	}
}
