package types

import "testing"

func TestStatusIsValid(t *testing.T) {
	valid := []Status{StatusOpen, StatusInProgress, StatusPaused, StatusDuplicate, StatusClosed}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Status("blocked").IsValid() {
		t.Error("legacy 'blocked' status must not validate (spec.md canonical set is the five listed in §3)")
	}
}

func TestStatusActiveTerminal(t *testing.T) {
	for _, s := range []Status{StatusOpen, StatusInProgress, StatusPaused} {
		if !s.IsActive() {
			t.Errorf("%q should be active", s)
		}
		if s.IsTerminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusClosed, StatusDuplicate} {
		if s.IsActive() {
			t.Errorf("%q should not be active", s)
		}
		if !s.IsTerminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
}

func TestDepKindIsValid(t *testing.T) {
	for _, k := range []DepKind{DepBlocks, DepParent, DepRelates} {
		if !k.IsValid() {
			t.Errorf("expected %q valid", k)
		}
	}
	if DepKind("related").IsValid() {
		t.Error("teacher's 'related' kind is not one of the spec's three")
	}
}

func TestDependencyCanonicalize(t *testing.T) {
	d := Dependency{SrcID: "b", DstID: "a", Kind: DepRelates}
	d.Canonicalize()
	if d.SrcID != "a" || d.DstID != "b" {
		t.Errorf("expected canonical (a,b), got (%s,%s)", d.SrcID, d.DstID)
	}

	blocks := Dependency{SrcID: "b", DstID: "a", Kind: DepBlocks}
	blocks.Canonicalize()
	if blocks.SrcID != "b" || blocks.DstID != "a" {
		t.Error("blocks edges must not be reordered")
	}
}

func TestValidateIssue(t *testing.T) {
	if err := ValidateIssue("", DefaultPriority, StatusOpen); err == nil {
		t.Error("empty title must be rejected")
	}
	if err := ValidateIssue("ok", 0, StatusOpen); err == nil {
		t.Error("priority 0 must be rejected")
	}
	if err := ValidateIssue("ok", 6, StatusOpen); err == nil {
		t.Error("priority 6 must be rejected")
	}
	if err := ValidateIssue("ok", 1, StatusOpen); err != nil {
		t.Errorf("priority 1 should be accepted: %v", err)
	}
	if err := ValidateIssue("ok", 5, StatusOpen); err != nil {
		t.Errorf("priority 5 should be accepted: %v", err)
	}
	if err := ValidateIssue("ok", DefaultPriority, Status("bogus")); err == nil {
		t.Error("invalid status must be rejected")
	}
}

func TestMergeTagsRemovalWins(t *testing.T) {
	got := MergeTags([]string{"a", "b"}, []string{"c", "x"}, []string{"x"})
	want := []string{"a", "b", "c"}
	if !equalStrings(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestMergeTagsSameTagBothListsIsNetRemoval(t *testing.T) {
	got := MergeTags([]string{"a"}, []string{"dup"}, []string{"dup"})
	want := []string{"a"}
	if !equalStrings(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
