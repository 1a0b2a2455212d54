package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string.
// Ids are UUIDv7 so that store indexes stay roughly in creation order.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
