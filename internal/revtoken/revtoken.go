// Package revtoken generates the monotonic revision tokens used as comment
// ids and for issue/dependency conflict resolution (spec.md §3 "Revision
// token"). A tissue rev token is, bit for bit, a ULID: 48 bits of millisecond
// timestamp followed by 80 bits of randomness, Crockford base32 encoded to 26
// characters. Within a process, two tokens minted in the same millisecond
// increment the low 80 bits rather than drawing fresh randomness, so they sort
// strictly after one another; across processes the timestamp dominates.
//
// No beads fork in the example pack implements this kind of last-writer-wins
// token (they use sequential integers or content hashes), so the generator is
// grounded on the wider example corpus's use of github.com/oklog/ulid/v2
// (other_examples/leonletto-thrum), which already builds monotonic ULIDs from
// a seeded entropy source.
package revtoken

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator mints monotonically increasing tokens. The zero value is not
// usable; use New.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New returns a Generator seeded from a cryptographically random source.
func New() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next mints a new token for the current time.
func (g *Generator) Next() string {
	return g.NextAt(time.Now())
}

// NextAt mints a new token for the given time, useful for deterministic
// tests. Successive calls with a non-decreasing time still increment the
// random suffix when the millisecond is unchanged.
func (g *Generator) NextAt(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), g.entropy)
	if err != nil {
		// ulid.New only errors when entropy read fails or clock overflows;
		// monotonic entropy never returns an error for a non-decreasing
		// timestamp, so this path is unreachable in practice. Fall back to
		// a fresh, non-monotonic token rather than panicking.
		id = ulid.MustNew(ulid.Timestamp(t), rand.Reader)
	}
	return id.String()
}

// defaultGenerator backs the package-level Next convenience function.
var defaultGenerator = New()

// Next mints a new token using the package-level generator. Most call sites
// hold no generator of their own and just want "the next token."
func Next() string {
	return defaultGenerator.Next()
}

// Less reports whether a sorts strictly before b under the byte-lexicographic
// comparison spec.md §4.3/§8 specifies for conflict resolution.
func Less(a, b string) bool {
	return a < b
}
