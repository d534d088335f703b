package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

// NormalizeEmail lower-cases and trims an email so it can be used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
