package jobs

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewID mints a URL-safe job identifier.
func NewID() (string, error) {
	return gonanoid.New()
}

// ValidID reports whether a caller-supplied job identifier is safe to
// embed in object store keys and URLs.
func ValidID(id string) bool {
	if len(id) < 4 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
