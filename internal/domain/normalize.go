package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal
// whitespace runs. It is used for subject name normalization at registration.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail lowercases and trims an email address so that uniqueness is
// case-insensitive in every store backend. No syntactic validation happens
// here; the registration contract accepts any non-empty string.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
