package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for stored models and authored objects
// that lack an identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
