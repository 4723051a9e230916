package revtoken

import (
	"testing"
	"time"
)

func TestNextLength(t *testing.T) {
	tok := Next()
	if len(tok) != 26 {
		t.Errorf("expected 26-char token, got %d: %q", len(tok), tok)
	}
}

func TestMonotonicSameMillisecond(t *testing.T) {
	g := New()
	now := time.Now()
	a := g.NextAt(now)
	b := g.NextAt(now)
	if !Less(a, b) {
		t.Errorf("expected %q < %q for same-millisecond tokens", a, b)
	}
}

func TestOrderingAcrossTime(t *testing.T) {
	g := New()
	t0 := time.Now()
	t1 := t0.Add(5 * time.Millisecond)
	a := g.NextAt(t0)
	b := g.NextAt(t1)
	if !Less(a, b) {
		t.Errorf("expected earlier timestamp to sort first: %q, %q", a, b)
	}
}
