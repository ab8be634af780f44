// Package token implements the tokenization pipeline: normalizing raw
// lexemes and splitting lines into normalized token occurrences.
package token

import (
	"crypto/md5"
	"strings"
)

// MinLength is the shortest lexeme that survives normalization.
const MinLength = 2

// MaxVerbatimLength is the longest lexeme stored as lowercase bytes rather
// than digested.
const MaxVerbatimLength = 16

// Normalize canonicalizes a raw lexeme into its dictionary key.
//
// Lexemes shorter than MinLength after trimming are dropped (ok=false).
// Lexemes of length <= MaxVerbatimLength are returned lowercased verbatim;
// longer ones collapse to their 16-byte MD5 digest so dictionary keys stay
// bounded in size. Collisions on the digest are accepted: a search for the
// same long word normalizes to the same digest.
func Normalize(s string) (key []byte, ok bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < MinLength {
		return nil, false
	}
	lower := strings.ToLower(trimmed)
	if len(lower) <= MaxVerbatimLength {
		return []byte(lower), true
	}
	sum := md5.Sum([]byte(lower))
	return sum[:], true
}
