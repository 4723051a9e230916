// Package jsonl implements the log's wire format and the low-level
// read/write mechanics spec.md §4.2 and §4.3 describe: one JSON object per
// line, three tagged-union record shapes, tail reads from a saved offset,
// and append-under-lock writes.
//
// Grounded on the JSONL encode/decode shape of
// _examples/other_examples/kylesnowschwartz-beads-lite/jsonl.go (one
// json.Encoder per write, line-oriented scanning with a buffer copy to avoid
// bufio.Scanner's reuse gotcha on read) and
// _examples/steveyegge-beads/internal/jsonl, adapted to the spec's three
// record shapes and exact field names rather than beads-lite's single
// issue-with-embedded-dependencies shape.
package jsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordType is the discriminant carried by every line's "type" field.
type RecordType string

const (
	TypeIssue   RecordType = "issue"
	TypeComment RecordType = "comment"
	TypeDep     RecordType = "dep"
)

// IssueRecord is the wire shape of an issue line (spec.md §4.2).
type IssueRecord struct {
	Type      RecordType `json:"type"`
	ID        string     `json:"id"`
	Rev       string     `json:"rev"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	Priority  int        `json:"priority"`
	Tags      []string   `json:"tags"`
	CreatedAt int64      `json:"created_at"`
	UpdatedAt int64      `json:"updated_at"`
}

// CommentRecord is the wire shape of a comment line.
type CommentRecord struct {
	Type      RecordType `json:"type"`
	ID        string     `json:"id"`
	IssueID   string     `json:"issue_id"`
	Body      string     `json:"body"`
	CreatedAt int64      `json:"created_at"`
}

// DepRecord is the wire shape of a dependency line.
type DepRecord struct {
	Type      RecordType `json:"type"`
	SrcID     string     `json:"src_id"`
	DstID     string     `json:"dst_id"`
	Kind      string     `json:"kind"`
	State     string     `json:"state"`
	CreatedAt int64      `json:"created_at"`
	Rev       string     `json:"rev"`
}

// sniff is used only to read the discriminant before decoding the full
// record; unknown fields are ignored per encoding/json's default behavior so
// a future version's extra fields round-trip on re-encode only if callers
// re-serialize the same concrete struct (they do: this package never
// re-marshals a record it did not itself construct).
type sniff struct {
	Type RecordType `json:"type"`
}

// Parse decodes one trimmed, non-empty log line into one of *IssueRecord,
// *CommentRecord, or *DepRecord. It returns an error for lines that are not
// valid JSON, whose top level is not an object, or whose "type" is not one of
// the three known values — all conditions spec.md §4.3 says must be skipped
// with a warning, never aborting import. It does not otherwise validate
// field presence or range: malformed-but-well-typed records are a concern of
// the store applying them (spec.md §7 MalformedRecord), not of parsing.
func Parse(line []byte) (any, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, fmt.Errorf("jsonl: line is not a JSON object")
	}
	var s sniff
	if err := json.Unmarshal(line, &s); err != nil {
		return nil, fmt.Errorf("jsonl: invalid JSON: %w", err)
	}
	switch s.Type {
	case TypeIssue:
		var r IssueRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("jsonl: invalid issue record: %w", err)
		}
		return &r, nil
	case TypeComment:
		var r CommentRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("jsonl: invalid comment record: %w", err)
		}
		return &r, nil
	case TypeDep:
		var r DepRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("jsonl: invalid dep record: %w", err)
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("jsonl: unknown record type %q", s.Type)
	}
}

// Marshal serializes one of *IssueRecord, *CommentRecord, or *DepRecord to a
// single line (no trailing newline).
func Marshal(rec any) ([]byte, error) {
	return json.Marshal(rec)
}
