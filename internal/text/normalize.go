// Package text implements the training-text gate and the generative n-gram
// model used for the talk command.
//
// [Normalizer] is the sole gate between raw chat and the training corpus: it
// rejects command lines and links, canonicalises whitespace, and enforces a
// minimum length. [Model] builds an order-N transition chain from the accepted
// corpus and generates new sentences from it.
package text

import "strings"

// DefaultMinLength is the minimum accepted sentence length after shaping.
const DefaultMinLength = 10

// linkMarker rejects any candidate containing a URL-ish substring. Matching is
// case-insensitive and deliberately coarse: training on links is never useful.
const linkMarker = "http"

// Normalizer filters and shapes candidate training sentences. It is stateless
// and safe for concurrent use. The zero value uses "!" as the command prefix
// and [DefaultMinLength].
type Normalizer struct {
	// Prefix is the command prefix character. Lines starting with it are
	// rejected so the corpus never contains bot commands.
	Prefix string

	// MinLength rejects sentences shorter than this after shaping.
	MinLength int
}

// NewNormalizer creates a Normalizer for the given command prefix.
// If prefix is empty, "!" is used. If minLength is <= 0, [DefaultMinLength] is used.
func NewNormalizer(prefix string, minLength int) *Normalizer {
	if prefix == "" {
		prefix = "!"
	}
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Normalizer{Prefix: prefix, MinLength: minLength}
}

// Normalize shapes raw into a corpus sentence. It returns the shaped sentence
// and true when accepted, or "" and false when rejected.
//
// Rejection rules, in order: line starts with the command prefix; line
// contains a link marker; shaped result is shorter than MinLength. Accepted
// sentences have internal whitespace collapsed, are trimmed, and always end
// with a period. Normalize never fails for any input.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	prefix := n.Prefix
	if prefix == "" {
		prefix = "!"
	}
	minLength := n.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	if strings.HasPrefix(raw, prefix) {
		return "", false
	}
	if strings.Contains(strings.ToLower(raw), linkMarker) {
		return "", false
	}

	s := strings.Join(strings.Fields(raw), " ")
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	if len(s) < minLength {
		return "", false
	}
	return s, true
}
