package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
)

var pg = goqu.Dialect("postgres")

type bookingTable struct {
	name   string
	date   string
	amount string
}

var (
	appointmentsTable = bookingTable{name: "appointments", date: "appointment_date", amount: "consultation_fee"}
	labTestsTable     = bookingTable{name: "lab_tests", date: "test_date", amount: "amount"}
)

// PgSource runs aggregates against Postgres. Recent activity is read through
// the booking repository so rows are scanned one way only.
type PgSource struct {
	pool     *pgxpool.Pool
	bookings *booking.PgRepository
}

func NewPgSource(pool *pgxpool.Pool, bookings *booking.PgRepository) *PgSource {
	return &PgSource{pool: pool, bookings: bookings}
}

func (s *PgSource) CountUsers(ctx context.Context, created *Range) (int, error) {
	ds := pg.From("users").Prepared(true).Select(goqu.COUNT(goqu.Star()))
	if created != nil {
		ds = ds.Where(
			goqu.C("created_at").Gte(created.Start),
			goqu.C("created_at").Lt(created.End),
		)
	}
	return s.scanCount(ctx, ds)
}

func (s *PgSource) CountActiveDoctors(ctx context.Context) (int, error) {
	ds := pg.From("doctors").Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("is_active").IsTrue())
	return s.scanCount(ctx, ds)
}

func (s *PgSource) CountAppointments(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, appointmentsTable, f)
}

func (s *PgSource) SumAppointmentFees(ctx context.Context, f Filter) (decimal.Decimal, error) {
	return s.sum(ctx, appointmentsTable, f)
}

func (s *PgSource) CountLabTests(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, labTestsTable, f)
}

func (s *PgSource) SumLabTestAmounts(ctx context.Context, f Filter) (decimal.Decimal, error) {
	return s.sum(ctx, labTestsTable, f)
}

func (s *PgSource) RecentAppointments(ctx context.Context, limit int) ([]booking.Appointment, error) {
	return s.bookings.RecentAppointments(ctx, limit)
}

func (s *PgSource) RecentLabTests(ctx context.Context, limit int) ([]booking.LabTest, error) {
	return s.bookings.RecentLabTests(ctx, limit)
}

func (s *PgSource) MonthlyAppointments(ctx context.Context, year Range) ([]MonthBucket, error) {
	return s.monthly(ctx, appointmentsTable, year)
}

func (s *PgSource) MonthlyLabTests(ctx context.Context, year Range) ([]MonthBucket, error) {
	return s.monthly(ctx, labTestsTable, year)
}

func filterExpressions(t bookingTable, f Filter) []exp.Expression {
	var where []exp.Expression
	if len(f.Statuses) > 0 {
		where = append(where, goqu.C("status").In(f.Statuses))
	}
	if f.Dates != nil {
		where = append(where,
			goqu.C(t.date).Gte(f.Dates.Start),
			goqu.C(t.date).Lt(f.Dates.End),
		)
	}
	return where
}

func (s *PgSource) count(ctx context.Context, t bookingTable, f Filter) (int, error) {
	ds := pg.From(t.name).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(filterExpressions(t, f)...)
	return s.scanCount(ctx, ds)
}

func (s *PgSource) scanCount(ctx context.Context, ds *goqu.SelectDataset) (int, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PgSource) sum(ctx context.Context, t bookingTable, f Filter) (decimal.Decimal, error) {
	query, args, err := pg.From(t.name).Prepared(true).
		Select(goqu.COALESCE(goqu.SUM(goqu.C(t.amount)), 0)).
		Where(filterExpressions(t, f)...).
		ToSQL()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build %s sum: %w", t.name, err)
	}

	var total decimal.Decimal
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *PgSource) monthly(ctx context.Context, t bookingTable, year Range) ([]MonthBucket, error) {
	month := goqu.L("EXTRACT(MONTH FROM ?)::int", goqu.C(t.date))

	query, args, err := pg.From(t.name).Prepared(true).
		Select(
			month.As("month"),
			goqu.COUNT(goqu.Star()).As("count"),
			goqu.COALESCE(goqu.SUM(goqu.C(t.amount)), 0).As("revenue"),
		).
		Where(
			goqu.C(t.date).Gte(year.Start),
			goqu.C(t.date).Lt(year.End),
		).
		GroupBy(goqu.L("1")).
		Order(goqu.L("1").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s monthly: %w", t.name, err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []MonthBucket
	for rows.Next() {
		var (
			m int
			b MonthBucket
		)
		if err := rows.Scan(&m, &b.Count, &b.Revenue); err != nil {
			return nil, err
		}
		b.Month = time.Month(m)
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
