package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	activeSlotConstraint = "appointments_active_slot_key"
)

const appointmentColumns = `id, booking_id, patient_id, doctor_id, appointment_date, time_slot,
	appointment_type, symptoms, notes, status, consultation_fee, payment_status, created_at, updated_at`

const labTestColumns = `id, booking_id, patient_id, test_name, test_category, test_date, time_slot,
	fasting_required, instructions, doctor_referral, status, report_time, amount, report_url,
	report_available, created_at, updated_at`

var pg = goqu.Dialect("postgres")

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.BookingID,
		&a.PatientID,
		&a.DoctorID,
		&a.AppointmentDate,
		&a.TimeSlot,
		&a.Type,
		&a.Symptoms,
		&a.Notes,
		&a.Status,
		&a.ConsultationFee,
		&a.PaymentStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("appointment: %w", ErrResourceNotFound)
		}
		return nil, err
	}

	return &a, nil
}

func scanLabTest(row pgx.Row) (*LabTest, error) {
	var t LabTest

	err := row.Scan(
		&t.ID,
		&t.BookingID,
		&t.PatientID,
		&t.TestName,
		&t.TestCategory,
		&t.TestDate,
		&t.TimeSlot,
		&t.FastingRequired,
		&t.Instructions,
		&t.DoctorReferral,
		&t.Status,
		&t.ReportTime,
		&t.Amount,
		&t.ReportURL,
		&t.ReportAvailable,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lab test: %w", ErrResourceNotFound)
		}
		return nil, err
	}

	return &t, nil
}

// classifyWriteError maps constraint and contention failures onto the
// booking error taxonomy.
func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == activeSlotConstraint {
			return ErrSlotConflict
		}
		return fmt.Errorf("unique violation on %s: %w", pgErr.ConstraintName, ErrTransientPersistence)
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("storage contention: %w", ErrTransientPersistence)
	}
	return err
}

// Appointments

func (r *PgRepository) FindActiveAppointmentForSlot(ctx context.Context, key SlotKey) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND time_slot = $3
		  AND status IN ('pending', 'confirmed')
		LIMIT 1
	`, key.DoctorID, key.Date, key.TimeSlot)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		a.ID, a.BookingID, a.PatientID, a.DoctorID, a.AppointmentDate, a.TimeSlot,
		a.Type, a.Symptoms, a.Notes, a.Status, a.ConsultationFee.String(), a.PaymentStatus,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return classifyWriteError(err)
	}
	return nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $4
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from, at)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrResourceNotFound) {
		return nil, errStatusChanged
	}
	if err != nil {
		return nil, classifyWriteError(err)
	}
	return a, nil
}

func (r *PgRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, p PaymentStatus, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, p, at)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, int, error) {
	var where []exp.Expression
	if f.PatientID != nil {
		where = append(where, goqu.C("patient_id").Eq(*f.PatientID))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if f.From != nil {
		where = append(where, goqu.C("appointment_date").Gte(NormalizeDate(*f.From)))
	}
	if f.To != nil {
		where = append(where, goqu.C("appointment_date").Lte(NormalizeDate(*f.To)))
	}

	limit, offset := clampPage(f.Limit, f.Offset)

	total, err := r.count(ctx, "appointments", where)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := pg.From("appointments").
		Prepared(true).
		Select(goqu.L(appointmentColumns)).
		Where(where...).
		Order(goqu.C("appointment_date").Desc(), goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

// RecentAppointments returns the newest appointments by creation time.
func (r *PgRepository) RecentAppointments(ctx context.Context, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Lab tests

func (r *PgRepository) CreateLabTest(ctx context.Context, t *LabTest) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO lab_tests (`+labTestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		t.ID, t.BookingID, t.PatientID, t.TestName, t.TestCategory, t.TestDate, t.TimeSlot,
		t.FastingRequired, t.Instructions, t.DoctorReferral, t.Status, t.ReportTime,
		t.Amount.String(), t.ReportURL, t.ReportAvailable, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return classifyWriteError(err)
	}
	return nil
}

func (r *PgRepository) GetLabTest(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+labTestColumns+`
		FROM lab_tests
		WHERE id = $1
	`, id)
	return scanLabTest(row)
}

func (r *PgRepository) UpdateLabTest(ctx context.Context, t *LabTest, from LabTestStatus) (*LabTest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE lab_tests
		SET status = $2,
		    report_url = $3,
		    report_available = $4,
		    updated_at = $5
		WHERE id = $1
		  AND status = $6
		RETURNING `+labTestColumns,
		t.ID, t.Status, t.ReportURL, t.ReportAvailable, t.UpdatedAt, from)

	updated, err := scanLabTest(row)
	if errors.Is(err, ErrResourceNotFound) {
		return nil, errStatusChanged
	}
	if err != nil {
		return nil, classifyWriteError(err)
	}
	return updated, nil
}

func (r *PgRepository) ListLabTests(ctx context.Context, f LabTestFilter) ([]LabTest, int, error) {
	var where []exp.Expression
	if f.PatientID != nil {
		where = append(where, goqu.C("patient_id").Eq(*f.PatientID))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if f.From != nil {
		where = append(where, goqu.C("test_date").Gte(NormalizeDate(*f.From)))
	}
	if f.To != nil {
		where = append(where, goqu.C("test_date").Lte(NormalizeDate(*f.To)))
	}

	limit, offset := clampPage(f.Limit, f.Offset)

	total, err := r.count(ctx, "lab_tests", where)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := pg.From("lab_tests").
		Prepared(true).
		Select(goqu.L(labTestColumns)).
		Where(where...).
		Order(goqu.C("test_date").Desc(), goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build lab test list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list lab tests: %w", err)
	}
	defer rows.Close()

	var result []LabTest
	for rows.Next() {
		t, err := scanLabTest(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

// RecentLabTests returns the newest lab tests by creation time.
func (r *PgRepository) RecentLabTests(ctx context.Context, limit int) ([]LabTest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+labTestColumns+`
		FROM lab_tests
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent lab tests: %w", err)
	}
	defer rows.Close()

	var result []LabTest
	for rows.Next() {
		t, err := scanLabTest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *PgRepository) count(ctx context.Context, table string, where []exp.Expression) (int, error) {
	query, args, err := pg.From(table).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(where...).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s count: %w", table, err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}
