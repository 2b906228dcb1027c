package lane

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

// Fingerprint is a 128-bit cache key derived from the normalized query
// text, the lane, and the effective top-K. Two requests that normalize to
// the same tuple share cached lane output.
type Fingerprint [16]byte

// Hex returns the lowercase hex encoding of the fingerprint.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// String implements fmt.Stringer.
func (f Fingerprint) String() string { return f.Hex() }

// Normalize canonicalizes query text for fingerprinting: lowercase,
// whitespace runs collapsed to a single space, surrounding punctuation
// stripped.
func Normalize(text string) string {
	text = strings.ToLower(text)
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = strings.TrimFunc(f, unicode.IsPunct)
	}
	// Dropping fields that were pure punctuation keeps "foo - bar" and
	// "foo bar" on the same key.
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// FingerprintFor computes the cache key for (query text, lane, topK).
func FingerprintFor(text string, id ID, topK int) Fingerprint {
	var b strings.Builder
	b.WriteString(Normalize(text))
	b.WriteByte(0)
	b.WriteString(string(id))
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(topK))

	h128 := xxh3.Hash128([]byte(b.String()))
	var f Fingerprint
	binary.LittleEndian.PutUint64(f[:8], h128.Lo)
	binary.LittleEndian.PutUint64(f[8:], h128.Hi)
	return f
}
