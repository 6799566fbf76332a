package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking-scheduling/internal/auth"
	"github.com/hackgods/clinic-booking-scheduling/internal/config"
	"github.com/hackgods/clinic-booking-scheduling/internal/directory"
	redisclient "github.com/hackgods/clinic-booking-scheduling/internal/redis"
)

// memRepository mirrors the storage constraints: one active appointment per
// slot and unique booking ids.
type memRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]Appointment
	labTests     map[uuid.UUID]LabTest
	bookingIDs   map[string]struct{}

	// transientFailures makes the next n creates fail as if the booking id
	// were already taken.
	transientFailures int
	attemptedIDs      []string
}

func newMemRepository() *memRepository {
	return &memRepository{
		appointments: make(map[uuid.UUID]Appointment),
		labTests:     make(map[uuid.UUID]LabTest),
		bookingIDs:   make(map[string]struct{}),
	}
}

func (r *memRepository) FindActiveAppointmentForSlot(_ context.Context, key SlotKey) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.DoctorID == key.DoctorID && a.AppointmentDate.Equal(key.Date) && a.TimeSlot == key.TimeSlot && a.Status.Blocking() {
			found := a
			return &found, nil
		}
	}
	return nil, ErrResourceNotFound
}

func (r *memRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attemptedIDs = append(r.attemptedIDs, a.BookingID)
	if err := r.claimBookingID(a.BookingID); err != nil {
		return err
	}

	for _, existing := range r.appointments {
		if existing.DoctorID == a.DoctorID && existing.AppointmentDate.Equal(a.AppointmentDate) &&
			existing.TimeSlot == a.TimeSlot && existing.Status.Blocking() {
			delete(r.bookingIDs, a.BookingID)
			return ErrSlotConflict
		}
	}

	r.appointments[a.ID] = *a
	return nil
}

func (r *memRepository) claimBookingID(id string) error {
	if r.transientFailures > 0 {
		r.transientFailures--
		return ErrTransientPersistence
	}
	if _, taken := r.bookingIDs[id]; taken {
		return ErrTransientPersistence
	}
	r.bookingIDs[id] = struct{}{}
	return nil
}

func (r *memRepository) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return &a, nil
}

func (r *memRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, errStatusChanged
	}
	a.Status = to
	a.UpdatedAt = at
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepository) UpdatePaymentStatus(_ context.Context, id uuid.UUID, p PaymentStatus, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	a.PaymentStatus = p
	a.UpdatedAt = at
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepository) ListAppointments(_ context.Context, f AppointmentFilter) ([]Appointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Appointment
	for _, a := range r.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, f.Limit, f.Offset), len(matched), nil
}

func (r *memRepository) CreateLabTest(_ context.Context, t *LabTest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attemptedIDs = append(r.attemptedIDs, t.BookingID)
	if err := r.claimBookingID(t.BookingID); err != nil {
		return err
	}
	r.labTests[t.ID] = *t
	return nil
}

func (r *memRepository) GetLabTest(_ context.Context, id uuid.UUID) (*LabTest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.labTests[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return &t, nil
}

func (r *memRepository) UpdateLabTest(_ context.Context, t *LabTest, from LabTestStatus) (*LabTest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.labTests[t.ID]
	if !ok || stored.Status != from {
		return nil, errStatusChanged
	}
	stored.Status = t.Status
	stored.ReportURL = t.ReportURL
	stored.ReportAvailable = t.ReportAvailable
	stored.UpdatedAt = t.UpdatedAt
	r.labTests[t.ID] = stored
	return &stored, nil
}

func (r *memRepository) ListLabTests(_ context.Context, f LabTestFilter) ([]LabTest, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []LabTest
	for _, t := range r.labTests {
		if f.PatientID != nil && t.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, f.Limit, f.Offset), len(matched), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type memDoctors struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]directory.Doctor
}

func (d *memDoctors) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	return &doc, nil
}

func (d *memDoctors) DoctorsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]directory.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[uuid.UUID]directory.Doctor, len(ids))
	for _, id := range ids {
		if doc, ok := d.doctors[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

func (d *memDoctors) setFee(id uuid.UUID, fee decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc := d.doctors[id]
	doc.ConsultationFee = fee
	d.doctors[id] = doc
}

type memUsers map[uuid.UUID]string

func (u memUsers) DisplayNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if name, ok := u[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// failingLocker reports the lock backend as unreachable without running fn.
type failingLocker struct{}

func (failingLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockUnavailable
}

type fixture struct {
	svc     *Service
	repo    *memRepository
	doctors *memDoctors
	doctor  directory.Doctor
	patient auth.Actor
	other   auth.Actor
	staff   auth.Actor
	now     time.Time
}

func newFixture(locker redisclient.Locker) *fixture {
	doctor := directory.Doctor{
		ID:              uuid.New(),
		Name:            "Dr. Grey",
		Specialization:  "Cardiology",
		ConsultationFee: decimal.RequireFromString("500.00"),
		Active:          true,
	}
	inactive := directory.Doctor{
		ID:              uuid.New(),
		Name:            "Dr. Away",
		Specialization:  "Dermatology",
		ConsultationFee: decimal.RequireFromString("300.00"),
		Active:          false,
	}

	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	other := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	staff := auth.Actor{ID: uuid.New(), Role: auth.RoleStaff}

	repo := newMemRepository()
	doctors := &memDoctors{doctors: map[uuid.UUID]directory.Doctor{
		doctor.ID:   doctor,
		inactive.ID: inactive,
	}}
	users := memUsers{patient.ID: "ana", other.ID: "ben", staff.ID: "front-desk"}

	if locker == nil {
		locker = redisclient.NoopLocker{}
	}

	now := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	svc := NewService(repo, doctors, users, locker, nil, config.Config{BookingIDTries: 3}, zerolog.Nop())
	svc.now = func() time.Time { return now }

	return &fixture{
		svc:     svc,
		repo:    repo,
		doctors: doctors,
		doctor:  doctor,
		patient: patient,
		other:   other,
		staff:   staff,
		now:     now,
	}
}

func (f *fixture) inactiveDoctorID() uuid.UUID {
	for id, d := range f.doctors.doctors {
		if !d.Active {
			return id
		}
	}
	return uuid.Nil
}

func (f *fixture) slotRequest(slot string) AppointmentRequest {
	return AppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		TimeSlot: slot,
		Type:     TypeConsultation,
	}
}
