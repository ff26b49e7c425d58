// Package util contains helper functions used around the code.
package util

import "strings"

// In returns true if s is found in ss, false otherwise
func In(ss []string, s string) bool {
	for _, v := range ss {
		if s == v {
			return true
		}
	}

	return false
}

// Lower returns the trimmed, lowercase form of an address or hash so it can be used as a key.
func Lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameAddress compares two addresses case-insensitively. Empty addresses never match.
func SameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
