package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking-scheduling/internal/auth"
	"github.com/hackgods/clinic-booking-scheduling/internal/config"
	"github.com/hackgods/clinic-booking-scheduling/internal/directory"
	"github.com/hackgods/clinic-booking-scheduling/internal/observability"
	redisclient "github.com/hackgods/clinic-booking-scheduling/internal/redis"
)

// maxStatusAttempts bounds compare-and-set retries when a booking's status
// changes between read and write.
const maxStatusAttempts = 3

type AppointmentRequest struct {
	DoctorID uuid.UUID
	Date     time.Time
	TimeSlot string
	Type     AppointmentType
	Symptoms string
	Notes    string
}

type LabTestRequest struct {
	TestName        string
	TestCategory    string
	Date            time.Time
	TimeSlot        string
	FastingRequired bool
	Instructions    string
	DoctorReferral  string
	Amount          *decimal.Decimal
}

type Service struct {
	repo      Repository
	doctors   directory.DoctorDirectory
	users     directory.UserDirectory
	locker    redisclient.Locker
	conflicts *ConflictChecker
	ids       *IDGenerator
	metrics   *observability.BookingMetrics
	log       zerolog.Logger
	now       func() time.Time
	idTries   int
}

func NewService(
	repo Repository,
	doctors directory.DoctorDirectory,
	users directory.UserDirectory,
	locker redisclient.Locker,
	metrics *observability.BookingMetrics,
	cfg config.Config,
	log zerolog.Logger,
) *Service {
	tries := cfg.BookingIDTries
	if tries < 1 {
		tries = 1
	}
	return &Service{
		repo:      repo,
		doctors:   doctors,
		users:     users,
		locker:    locker,
		conflicts: NewConflictChecker(repo),
		ids:       NewIDGenerator(),
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		idTries:   tries,
	}
}

// BookAppointment reserves a doctor's slot for the calling patient.
// The Redis lock serializes bookers of the same slot so the pre-check can
// answer quickly; the storage constraint is what actually rules out a
// double booking, and its violation surfaces as ErrSlotConflict too.
func (s *Service) BookAppointment(ctx context.Context, actor auth.Actor, req AppointmentRequest) (*AppointmentDetail, error) {
	if req.Type == "" {
		req.Type = TypeConsultation
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("unknown appointment type %q: %w", req.Type, ErrInvalidInput)
	}

	key := NewSlotKey(req.DoctorID, req.Date, req.TimeSlot)
	if req.DoctorID == uuid.Nil || req.Date.IsZero() || key.TimeSlot == "" {
		return nil, fmt.Errorf("doctor, date and time slot are required: %w", ErrInvalidInput)
	}

	doctor, err := s.doctors.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, fmt.Errorf("doctor %s: %w", req.DoctorID, ErrResourceNotFound)
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Active {
		return nil, fmt.Errorf("doctor is not available for appointments: %w", ErrResourceUnavailable)
	}

	var created *Appointment

	reserve := func(lockCtx context.Context) error {
		// Inside the critical section re-check for an active appointment on this slot
		conflict, err := s.conflicts.HasConflict(lockCtx, key)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		now := s.now()
		appt := &Appointment{
			ID:              uuid.New(),
			PatientID:       actor.ID,
			DoctorID:        doctor.ID,
			AppointmentDate: key.Date,
			TimeSlot:        key.TimeSlot,
			Type:            req.Type,
			Symptoms:        strings.TrimSpace(req.Symptoms),
			Notes:           strings.TrimSpace(req.Notes),
			Status:          StatusPending,
			ConsultationFee: doctor.ConsultationFee,
			PaymentStatus:   PaymentPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err = s.persistWithBookingID(lockCtx, KindAppointment, &appt.BookingID, func(c context.Context) error {
			return s.repo.CreateAppointment(c, appt)
		})
		if err != nil {
			return err
		}

		created = appt
		return nil
	}

	err = s.locker.WithSlotLock(ctx, key.String(), reserve)
	if errors.Is(err, redisclient.ErrLockNotAcquired) || errors.Is(err, redisclient.ErrLockUnavailable) {
		s.log.Warn().Err(err).Str("slot", key.String()).Msg("slot lock not held, relying on storage constraint")
		err = reserve(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.SlotConflict(ctx)
		}
		return nil, err
	}

	s.metrics.Created(ctx, string(KindAppointment))
	s.log.Info().
		Str("booking_id", created.BookingID).
		Str("doctor_id", created.DoctorID.String()).
		Msg("appointment booked")

	return s.appointmentDetail(ctx, created), nil
}

// BookLabTest books a diagnostic test. Lab slots are shared, so there is no
// conflict check.
func (s *Service) BookLabTest(ctx context.Context, actor auth.Actor, req LabTestRequest) (*LabTestDetail, error) {
	if req.Amount == nil || req.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	testName := strings.TrimSpace(req.TestName)
	category := strings.TrimSpace(req.TestCategory)
	slot := strings.TrimSpace(req.TimeSlot)
	if testName == "" || category == "" || slot == "" || req.Date.IsZero() {
		return nil, fmt.Errorf("test name, category, date and time slot are required: %w", ErrInvalidInput)
	}

	now := s.now()
	test := &LabTest{
		ID:              uuid.New(),
		PatientID:       actor.ID,
		TestName:        testName,
		TestCategory:    category,
		TestDate:        NormalizeDate(req.Date),
		TimeSlot:        slot,
		FastingRequired: req.FastingRequired,
		Instructions:    strings.TrimSpace(req.Instructions),
		DoctorReferral:  strings.TrimSpace(req.DoctorReferral),
		Status:          LabScheduled,
		ReportTime:      DefaultReportTime,
		Amount:          *req.Amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.persistWithBookingID(ctx, KindLabTest, &test.BookingID, func(c context.Context) error {
		return s.repo.CreateLabTest(c, test)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Created(ctx, string(KindLabTest))
	s.log.Info().Str("booking_id", test.BookingID).Msg("lab test booked")

	return s.labTestDetail(ctx, test), nil
}

// persistWithBookingID stamps a booking identifier and inserts, generating a
// fresh identifier whenever the insert reports a transient failure.
func (s *Service) persistWithBookingID(ctx context.Context, kind Kind, bookingID *string, insert func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.idTries; attempt++ {
		s.ids.Assign(kind, bookingID)

		err = insert(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransientPersistence) {
			return err
		}

		s.metrics.IDCollision(ctx, string(kind))
		s.log.Warn().Err(err).
			Str("kind", string(kind)).
			Int("attempt", attempt).
			Msg("insert hit a transient failure, regenerating booking id")

		// never persisted, so the identifier may still be replaced
		*bookingID = ""
	}

	return fmt.Errorf("persist %s after %d attempts: %w", kind, s.idTries, err)
}

// GetAppointment returns an appointment readable by actor.
func (s *Service) GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(actor, appt.PatientID); err != nil {
		return nil, err
	}
	return s.appointmentDetail(ctx, appt), nil
}

func (s *Service) CancelAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*AppointmentDetail, error) {
	return s.mutateAppointmentStatus(ctx, id, func(a *Appointment) error {
		return CancelAppointment(a, actor, s.now())
	})
}

func (s *Service) TransitionAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID, to AppointmentStatus) (*AppointmentDetail, error) {
	return s.mutateAppointmentStatus(ctx, id, func(a *Appointment) error {
		return TransitionAppointment(a, actor, to, s.now())
	})
}

// mutateAppointmentStatus applies a lifecycle step against the freshest
// stored record. The write only lands if the status is unchanged since the
// read, otherwise the step is re-evaluated.
func (s *Service) mutateAppointmentStatus(ctx context.Context, id uuid.UUID, apply func(*Appointment) error) (*AppointmentDetail, error) {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.loadAppointment(ctx, id)
		if err != nil {
			return nil, err
		}

		next := *current
		if err := apply(&next); err != nil {
			return nil, err
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, id, current.Status, next.Status, next.UpdatedAt)
		if errors.Is(err, errStatusChanged) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update appointment status: %w", err)
		}

		s.metrics.Transition(ctx, string(KindAppointment), string(updated.Status))
		s.log.Info().
			Str("booking_id", updated.BookingID).
			Str("from", string(current.Status)).
			Str("to", string(updated.Status)).
			Msg("appointment status changed")

		return s.appointmentDetail(ctx, updated), nil
	}

	return nil, fmt.Errorf("appointment %s kept changing: %w", id, ErrTransientPersistence)
}

func (s *Service) SetPaymentStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, p PaymentStatus) (*AppointmentDetail, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := SetPaymentStatus(appt, actor, p, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdatePaymentStatus(ctx, id, appt.PaymentStatus, appt.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	return s.appointmentDetail(ctx, updated), nil
}

// ListMyAppointments lists the caller's own appointments.
func (s *Service) ListMyAppointments(ctx context.Context, actor auth.Actor, limit, offset int) ([]AppointmentDetail, int, error) {
	patientID := actor.ID
	return s.listAppointments(ctx, AppointmentFilter{PatientID: &patientID, Limit: limit, Offset: offset})
}

// ListAppointments lists every appointment matching f. Staff only.
func (s *Service) ListAppointments(ctx context.Context, actor auth.Actor, f AppointmentFilter) ([]AppointmentDetail, int, error) {
	if err := authorizeStaff(actor); err != nil {
		return nil, 0, err
	}
	return s.listAppointments(ctx, f)
}

func (s *Service) listAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, int, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	appts, total, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return s.appointmentDetails(ctx, appts), total, nil
}

func (s *Service) GetLabTest(ctx context.Context, actor auth.Actor, id uuid.UUID) (*LabTestDetail, error) {
	test, err := s.loadLabTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAccess(actor, test.PatientID); err != nil {
		return nil, err
	}
	return s.labTestDetail(ctx, test), nil
}

func (s *Service) TransitionLabTest(ctx context.Context, actor auth.Actor, id uuid.UUID, to LabTestStatus) (*LabTestDetail, error) {
	return s.mutateLabTest(ctx, id, func(t *LabTest) error {
		return TransitionLabTest(t, actor, to, s.now())
	})
}

// UploadLabReport attaches a report and completes the test.
func (s *Service) UploadLabReport(ctx context.Context, actor auth.Actor, id uuid.UUID, reportURL string) (*LabTestDetail, error) {
	return s.mutateLabTest(ctx, id, func(t *LabTest) error {
		return UploadReport(t, actor, reportURL, s.now())
	})
}

func (s *Service) mutateLabTest(ctx context.Context, id uuid.UUID, apply func(*LabTest) error) (*LabTestDetail, error) {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.loadLabTest(ctx, id)
		if err != nil {
			return nil, err
		}

		next := *current
		if err := apply(&next); err != nil {
			return nil, err
		}

		updated, err := s.repo.UpdateLabTest(ctx, &next, current.Status)
		if errors.Is(err, errStatusChanged) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update lab test: %w", err)
		}

		s.metrics.Transition(ctx, string(KindLabTest), string(updated.Status))
		s.log.Info().
			Str("booking_id", updated.BookingID).
			Str("from", string(current.Status)).
			Str("to", string(updated.Status)).
			Bool("report_available", updated.ReportAvailable).
			Msg("lab test updated")

		return s.labTestDetail(ctx, updated), nil
	}

	return nil, fmt.Errorf("lab test %s kept changing: %w", id, ErrTransientPersistence)
}

func (s *Service) ListMyLabTests(ctx context.Context, actor auth.Actor, limit, offset int) ([]LabTestDetail, int, error) {
	patientID := actor.ID
	return s.listLabTests(ctx, LabTestFilter{PatientID: &patientID, Limit: limit, Offset: offset})
}

// ListLabTests lists every lab test matching f. Staff only.
func (s *Service) ListLabTests(ctx context.Context, actor auth.Actor, f LabTestFilter) ([]LabTestDetail, int, error) {
	if err := authorizeStaff(actor); err != nil {
		return nil, 0, err
	}
	return s.listLabTests(ctx, f)
}

func (s *Service) listLabTests(ctx context.Context, f LabTestFilter) ([]LabTestDetail, int, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	tests, total, err := s.repo.ListLabTests(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list lab tests: %w", err)
	}
	return s.labTestDetails(ctx, tests), total, nil
}

func (s *Service) loadAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) loadLabTest(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	test, err := s.repo.GetLabTest(ctx, id)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load lab test: %w", err)
	}
	return test, nil
}

func (s *Service) appointmentDetail(ctx context.Context, a *Appointment) *AppointmentDetail {
	details := s.appointmentDetails(ctx, []Appointment{*a})
	return &details[0]
}

// appointmentDetails joins appointments with patient and doctor names.
// Lookup failures degrade to directory.UnknownName; the bookings themselves
// are already authoritative.
func (s *Service) appointmentDetails(ctx context.Context, appts []Appointment) []AppointmentDetail {
	patientIDs := make([]uuid.UUID, 0, len(appts))
	doctorIDs := make([]uuid.UUID, 0, len(appts))
	for _, a := range appts {
		patientIDs = append(patientIDs, a.PatientID)
		doctorIDs = append(doctorIDs, a.DoctorID)
	}

	names, err := s.users.DisplayNames(ctx, patientIDs)
	if err != nil {
		s.log.Warn().Err(err).Msg("resolve patient names")
	}
	doctors, err := s.doctors.DoctorsByID(ctx, doctorIDs)
	if err != nil {
		s.log.Warn().Err(err).Msg("resolve doctors")
	}

	out := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		d := AppointmentDetail{
			Appointment:    a,
			PatientName:    directory.NameOr(names, a.PatientID),
			DoctorName:     directory.UnknownName,
			Specialization: directory.UnknownName,
		}
		if doc, ok := doctors[a.DoctorID]; ok {
			d.DoctorName = doc.Name
			d.Specialization = doc.Specialization
		}
		out = append(out, d)
	}
	return out
}

func (s *Service) labTestDetail(ctx context.Context, t *LabTest) *LabTestDetail {
	details := s.labTestDetails(ctx, []LabTest{*t})
	return &details[0]
}

func (s *Service) labTestDetails(ctx context.Context, tests []LabTest) []LabTestDetail {
	patientIDs := make([]uuid.UUID, 0, len(tests))
	for _, t := range tests {
		patientIDs = append(patientIDs, t.PatientID)
	}

	names, err := s.users.DisplayNames(ctx, patientIDs)
	if err != nil {
		s.log.Warn().Err(err).Msg("resolve patient names")
	}

	out := make([]LabTestDetail, 0, len(tests))
	for _, t := range tests {
		out = append(out, LabTestDetail{LabTest: t, PatientName: directory.NameOr(names, t.PatientID)})
	}
	return out
}
