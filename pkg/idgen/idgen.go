package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces identifiers for newly created aggregates before they are
// persisted.
type Generator interface {
	NewID() (string, error)
}

// UUID generates time-ordered UUIDv7 identifiers.
type UUID struct{}

func (UUID) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}

	return id.String(), nil
}
