package model

import (
	"github.com/google/uuid"
)

// Clinician and Patient are read-only directory projections. Profile
// CRUD is owned by the identity service; this service only needs the
// fields that notifications and reports render.

type Clinician struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Department string    `db:"department" json:"department"`
}

type Patient struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	WebhookURL *string   `db:"webhook_url" json:"webhook_url,omitempty"`
}
