// ABOUTME: Numeric identifier validation for command arguments
// ABOUTME: Accepts finite real numbers and Unicode numeral tokens

package ident

import (
	"math"
	"strconv"
	"unicode"
)

// Valid reports whether token is usable as a numeric identifier.
// A token is valid if it parses as a finite real number, or if every
// rune in it is a Unicode numeral (covers non-ASCII digit scripts
// such as ０１２ or 一二三).
func Valid(token string) bool {
	if token == "" {
		return false
	}

	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	}

	for _, r := range token {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

// Canonical returns the storage form of a numeric identifier: the
// decimal string of its integer value when the token parses as an
// integer, otherwise the token unchanged.
func Canonical(token string) string {
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return token
}
