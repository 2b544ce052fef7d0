package model

import (
	"github.com/google/uuid"
)

// Outcome is the result record attached to a completed appointment.
// One per appointment, created in the same transaction as the
// booked -> completed transition.
type Outcome struct {
	Base
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Diagnosis     string    `db:"diagnosis" json:"diagnosis"`
	Prescription  string    `db:"prescription" json:"prescription"`
	Notes         string    `db:"notes" json:"notes,omitempty"`
	FollowUpDate  *Date     `db:"follow_up_date" json:"follow_up_date,omitempty"`
}

type CompleteAppointmentRequest struct {
	Diagnosis    string `json:"diagnosis" binding:"required,max=256"`
	Prescription string `json:"prescription" binding:"required,max=256"`
	Notes        string `json:"notes" binding:"max=512"`
	FollowUpDate *Date  `json:"follow_up_date"`
}
