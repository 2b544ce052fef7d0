package model

import (
	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// Appointment occupies exactly one (clinician, date, time) slot while
// status is booked. Rows are never deleted; cancellation is a status change.
type Appointment struct {
	Base
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	ClinicianID  uuid.UUID         `db:"clinician_id" json:"clinician_id"`
	Date         Date              `db:"visit_date" json:"date"`
	Time         ClockTime         `db:"visit_time" json:"time"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Reason       string            `db:"reason" json:"reason,omitempty"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

type BookAppointmentRequest struct {
	ClinicianID uuid.UUID `json:"clinician_id" binding:"required"`
	Date        Date      `json:"date" binding:"required"`
	Time        ClockTime `json:"time" binding:"required"`
	Reason      string    `json:"reason" binding:"max=256"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=256"`
}

type AppointmentFilters struct {
	ClinicianID uuid.UUID
	PatientID   uuid.UUID
	Status      AppointmentStatus
	From        *Date
	To          *Date
}
