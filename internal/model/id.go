package model

import "github.com/google/uuid"

// NewID generates a fresh job identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidateID reports whether id is a well-formed job identifier.
func ValidateID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
