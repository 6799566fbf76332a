package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// errStatusChanged is returned by compare-and-set status updates when the
// stored status no longer matches the expected one.
var errStatusChanged = errors.New("status changed concurrently")

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type AppointmentFilter struct {
	PatientID *uuid.UUID
	Status    AppointmentStatus
	From      *time.Time // inclusive, by appointment date
	To        *time.Time // inclusive, by appointment date
	Limit     int
	Offset    int
}

type LabTestFilter struct {
	PatientID *uuid.UUID
	Status    LabTestStatus
	From      *time.Time // inclusive, by test date
	To        *time.Time // inclusive, by test date
	Limit     int
	Offset    int
}

// Repository contains all storage interactions needed by the service.
type Repository interface {
	// For conflict checks
	SlotReader

	// CreateAppointment returns ErrSlotConflict when the active-slot
	// constraint rejects the row and ErrTransientPersistence when the
	// booking identifier is already taken.
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, p PaymentStatus, at time.Time) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, int, error)

	CreateLabTest(ctx context.Context, t *LabTest) error
	GetLabTest(ctx context.Context, id uuid.UUID) (*LabTest, error)
	// UpdateLabTest persists status and report fields if the stored status
	// still equals from.
	UpdateLabTest(ctx context.Context, t *LabTest, from LabTestStatus) (*LabTest, error)
	ListLabTests(ctx context.Context, f LabTestFilter) ([]LabTest, int, error)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
