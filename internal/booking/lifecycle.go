package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-scheduling/internal/auth"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Blocking reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s LabTestStatus) Valid() bool {
	switch s {
	case LabScheduled, LabSampleCollected, LabInProgress, LabCompleted, LabCancelled:
		return true
	}
	return false
}

func (s LabTestStatus) IsTerminal() bool {
	return s == LabCompleted || s == LabCancelled
}

// Pending reports whether the lab still owes work on the test.
func (s LabTestStatus) Pending() bool {
	return s == LabScheduled || s == LabInProgress
}

// authorizeAccess allows staff, or the patient who owns the booking.
func authorizeAccess(actor auth.Actor, ownerID uuid.UUID) error {
	if actor.IsStaff() || actor.Owns(ownerID) {
		return nil
	}
	return ErrNotAuthorized
}

func authorizeStaff(actor auth.Actor) error {
	if actor.IsStaff() {
		return nil
	}
	return ErrNotAuthorized
}

// CancelAppointment applies the cancel action. Owners and staff may cancel
// any appointment that is not yet terminal.
func CancelAppointment(a *Appointment, actor auth.Actor, now time.Time) error {
	if err := authorizeAccess(actor, a.PatientID); err != nil {
		return err
	}
	if a.Status.IsTerminal() {
		return fmt.Errorf("appointment is already %s: %w", a.Status, ErrAlreadyTerminal)
	}

	a.Status = StatusCancelled
	a.UpdatedAt = now
	return nil
}

// TransitionAppointment moves a to status to. Staff may move a non-terminal
// appointment to any status; a patient may only cancel their own.
func TransitionAppointment(a *Appointment, actor auth.Actor, to AppointmentStatus, now time.Time) error {
	if !actor.IsStaff() {
		if to != StatusCancelled {
			return ErrNotAuthorized
		}
		return CancelAppointment(a, actor, now)
	}
	if !to.Valid() {
		return fmt.Errorf("unknown appointment status %q: %w", to, ErrInvalidInput)
	}
	if a.Status.IsTerminal() {
		return fmt.Errorf("appointment is already %s: %w", a.Status, ErrAlreadyTerminal)
	}

	a.Status = to
	a.UpdatedAt = now
	return nil
}

// TransitionLabTest sets a lab test status. Only staff drive lab tests.
func TransitionLabTest(t *LabTest, actor auth.Actor, to LabTestStatus, now time.Time) error {
	if err := authorizeStaff(actor); err != nil {
		return err
	}
	if !to.Valid() {
		return fmt.Errorf("unknown lab test status %q: %w", to, ErrInvalidInput)
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("lab test is already %s: %w", t.Status, ErrAlreadyTerminal)
	}

	t.Status = to
	t.UpdatedAt = now
	return nil
}

// UploadReport records a report URL and completes the test in one step,
// whatever intermediate status it was in. A completed test may have its
// report replaced; a cancelled one may not.
func UploadReport(t *LabTest, actor auth.Actor, reportURL string, now time.Time) error {
	if err := authorizeStaff(actor); err != nil {
		return err
	}
	reportURL = strings.TrimSpace(reportURL)
	if reportURL == "" {
		return fmt.Errorf("report url is required: %w", ErrInvalidInput)
	}
	if t.Status == LabCancelled {
		return fmt.Errorf("lab test is already %s: %w", t.Status, ErrAlreadyTerminal)
	}

	t.ReportURL = reportURL
	t.ReportAvailable = true
	t.Status = LabCompleted
	t.UpdatedAt = now
	return nil
}

// SetPaymentStatus records payment state. It never changes booking status
// and so has no bearing on revenue.
func SetPaymentStatus(a *Appointment, actor auth.Actor, p PaymentStatus, now time.Time) error {
	if err := authorizeStaff(actor); err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("unknown payment status %q: %w", p, ErrInvalidInput)
	}

	a.PaymentStatus = p
	a.UpdatedAt = now
	return nil
}
