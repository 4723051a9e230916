// Package idgen implements the identifier service of spec.md §4.1: issue id
// minting, project-prefix normalization, and id-lookup resolution.
//
// The hashing scheme is grounded on
// _examples/steveyegge-beads/internal/idgen/hash.go (EncodeBase36 /
// GenerateHashID), adapted to the spec's fixed 8-character, 5-byte hash and
// its exact input string (title|body|decimal(created_at)|decimal(nonce)).
package idgen

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// HashLen is the fixed length, in base36 characters, of the hash portion
	// of an issue id. 8 chars of base36 need 5 bytes (40 bits) of input.
	HashLen = 8
	hashNumBytes = 5
	// MaxNonceAttempts bounds the id-minting retry loop before IssueIdCollision.
	MaxNonceAttempts = 10
	// MaxPrefixLen bounds a normalized prefix.
	MaxPrefixLen = 32
)

// encodeBase36 renders the leading hashNumBytes of sum as a zero-padded,
// exactly-HashLen-character lowercase base36 string, keeping the least
// significant digits if the value would not fit (mirrors the teacher's
// EncodeBase36 truncate-from-the-left behavior for a fixed-width output).
func encodeBase36(sum []byte) string {
	var v uint64
	for _, b := range sum[:hashNumBytes] {
		v = v<<8 | uint64(b)
	}
	buf := make([]byte, HashLen)
	for i := HashLen - 1; i >= 0; i-- {
		buf[i] = base36Alphabet[v%36]
		v /= 36
	}
	return string(buf)
}

// HashIssueID computes the 8-char base36 hash portion of an issue id for the
// given content and nonce, per spec.md §4.1.
func HashIssueID(title, body string, createdAt int64, nonce int) string {
	input := fmt.Sprintf("%s|%s|%d|%d", title, body, createdAt, nonce)
	sum := sha256.Sum256([]byte(input))
	return encodeBase36(sum[:])
}

// MintIssueID builds candidate ids prefix-hash for nonces 0..MaxNonceAttempts-1
// and calls exists to test each for a collision in the cache. It returns the
// first id exists reports as free, or ErrIssueIDCollision once attempts are
// exhausted.
func MintIssueID(prefix, title, body string, createdAt int64, exists func(id string) (bool, error)) (string, error) {
	for nonce := 0; nonce < MaxNonceAttempts; nonce++ {
		hash := HashIssueID(title, body, createdAt, nonce)
		id := prefix + "-" + hash
		taken, err := exists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrIssueIDCollision
}

// ErrIssueIDCollision is returned by MintIssueID when all nonces produced an
// id already present in the cache (spec.md §7 IssueIdCollision).
var ErrIssueIDCollision = fmt.Errorf("idgen: exhausted %d nonces without a free id", MaxNonceAttempts)

// NormalizePrefix implements spec.md §4.1 "Prefix normalization". An empty
// result is reported via ok=false (InvalidPrefix).
func NormalizePrefix(raw string) (normalized string, ok bool) {
	var b strings.Builder
	lastWasDash := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash && b.Len() > 0 {
				b.WriteByte('-')
				lastWasDash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > MaxPrefixLen {
		s = s[:MaxPrefixLen]
	}
	s = strings.TrimRight(s, "-")
	if s == "" {
		return "", false
	}
	return s, true
}

// HashSuffix returns the substring of id after its last '-', or the whole id
// if it contains no '-'.
func HashSuffix(id string) string {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return id
	}
	return id[idx+1:]
}

// ValidLookupInput reports whether s only contains characters the lookup
// resolver (spec.md §4.1 "Id lookup resolution") accepts as a candidate id or
// id fragment.
func ValidLookupInput(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}
