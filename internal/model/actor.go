package model

import (
	"github.com/google/uuid"
)

// Actor is the authenticated party attached to a request by the auth
// middleware. Exactly one of PatientID/ClinicianID is set for
// non-admin actors; identity storage lives outside this service.
type Actor struct {
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
	ClinicianID *uuid.UUID `json:"clinician_id,omitempty"`
	IsAdmin     bool       `json:"is_admin"`
}

func (a *Actor) IsPatient(id uuid.UUID) bool {
	return a.PatientID != nil && *a.PatientID == id
}

func (a *Actor) IsClinician(id uuid.UUID) bool {
	return a.ClinicianID != nil && *a.ClinicianID == id
}

// CanCancel reports whether the actor may cancel the given appointment:
// the owning patient, the assigned clinician, or an admin.
func (a *Actor) CanCancel(apt *Appointment) bool {
	return a.IsAdmin || a.IsPatient(apt.PatientID) || a.IsClinician(apt.ClinicianID)
}

// CanView reports whether the actor may read an appointment or request
// artifacts derived from it. Same parties as CanCancel.
func (a *Actor) CanView(apt *Appointment) bool {
	return a.CanCancel(apt)
}

// CanComplete reports whether the actor may complete the given
// appointment: only the assigned clinician.
func (a *Actor) CanComplete(apt *Appointment) bool {
	return a.IsClinician(apt.ClinicianID)
}
