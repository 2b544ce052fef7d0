package model

import (
	"github.com/google/uuid"
)

// AvailabilityWindow is a clinician-declared open time range on a date.
// Windows for one (clinician, date) never overlap; the whole set for a
// date is replaced in one write.
type AvailabilityWindow struct {
	Base
	ClinicianID uuid.UUID `db:"clinician_id" json:"clinician_id"`
	Date        Date      `db:"visit_date" json:"date"`
	StartTime   ClockTime `db:"start_time" json:"start_time"`
	EndTime     ClockTime `db:"end_time" json:"end_time"`
	Enabled     bool      `db:"enabled" json:"enabled"`
}

type WindowInput struct {
	StartTime ClockTime `json:"start_time" binding:"required"`
	EndTime   ClockTime `json:"end_time" binding:"required"`
	Enabled   *bool     `json:"enabled"`
}

type ReplaceScheduleRequest struct {
	Date    Date          `json:"date" binding:"required"`
	Windows []WindowInput `json:"windows" binding:"dive"`
}

// OpenWindow is one availability window annotated with the start times
// already consumed by booked appointments.
type OpenWindow struct {
	StartTime   ClockTime   `json:"start_time"`
	EndTime     ClockTime   `json:"end_time"`
	BookedTimes []ClockTime `json:"booked_times"`
}

// OpenSlots is the read model served to booking clients. ReferenceTime
// is set for the current date only so callers can discard past slots.
type OpenSlots struct {
	ClinicianID   uuid.UUID    `json:"clinician_id"`
	Date          Date         `json:"date"`
	Windows       []OpenWindow `json:"windows"`
	ReferenceTime *ClockTime   `json:"reference_time,omitempty"`
}
