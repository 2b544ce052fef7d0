package model

import (
	"testing"

	"github.com/google/uuid"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func ptrUUID(id uuid.UUID) *uuid.UUID {
	return &id
}
