package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
)

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Filter narrows a booking aggregate. Zero values match everything. On
// appointments and lab tests Dates applies to the booking date.
type Filter struct {
	Statuses []string
	Dates    *Range
}

// Source answers the aggregate questions the engine asks of the booking store.
type Source interface {
	CountUsers(ctx context.Context, created *Range) (int, error)
	CountActiveDoctors(ctx context.Context) (int, error)

	CountAppointments(ctx context.Context, f Filter) (int, error)
	SumAppointmentFees(ctx context.Context, f Filter) (decimal.Decimal, error)
	CountLabTests(ctx context.Context, f Filter) (int, error)
	SumLabTestAmounts(ctx context.Context, f Filter) (decimal.Decimal, error)

	RecentAppointments(ctx context.Context, limit int) ([]booking.Appointment, error)
	RecentLabTests(ctx context.Context, limit int) ([]booking.LabTest, error)

	MonthlyAppointments(ctx context.Context, year Range) ([]MonthBucket, error)
	MonthlyLabTests(ctx context.Context, year Range) ([]MonthBucket, error)
}
