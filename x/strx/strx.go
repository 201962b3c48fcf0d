package strx

import "strings"

// Coalesce returns s if non-empty, otherwise d.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// Normalize trims surrounding whitespace (including a trailing CR) and upper-cases s.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
// Signs, spaces and decimal points are rejected.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CutAny returns the remainder after the first prefix in prefixes that s starts with.
func CutAny(s string, prefixes ...string) (rest string, matched string, ok bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return s[len(p):], p, true
		}
	}
	return s, "", false
}
