package stats

import (
	"context"
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
	"github.com/hackgods/clinic-booking-scheduling/internal/directory"
)

type memSource struct {
	userCreated   []time.Time
	activeDoctors int
	appointments  []booking.Appointment
	labTests      []booking.LabTest
	err           error
}

func inRange(r *Range, t time.Time) bool {
	return r == nil || (!t.Before(r.Start) && t.Before(r.End))
}

func matches(f Filter, status string, date time.Time) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, status) {
		return false
	}
	return inRange(f.Dates, date)
}

func (s *memSource) CountUsers(_ context.Context, created *Range) (int, error) {
	n := 0
	for _, c := range s.userCreated {
		if inRange(created, c) {
			n++
		}
	}
	return n, s.err
}

func (s *memSource) CountActiveDoctors(context.Context) (int, error) {
	return s.activeDoctors, s.err
}

func (s *memSource) CountAppointments(_ context.Context, f Filter) (int, error) {
	n := 0
	for _, a := range s.appointments {
		if matches(f, string(a.Status), a.AppointmentDate) {
			n++
		}
	}
	return n, s.err
}

func (s *memSource) SumAppointmentFees(_ context.Context, f Filter) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range s.appointments {
		if matches(f, string(a.Status), a.AppointmentDate) {
			total = total.Add(a.ConsultationFee)
		}
	}
	return total, s.err
}

func (s *memSource) CountLabTests(_ context.Context, f Filter) (int, error) {
	n := 0
	for _, t := range s.labTests {
		if matches(f, string(t.Status), t.TestDate) {
			n++
		}
	}
	return n, s.err
}

func (s *memSource) SumLabTestAmounts(_ context.Context, f Filter) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range s.labTests {
		if matches(f, string(t.Status), t.TestDate) {
			total = total.Add(t.Amount)
		}
	}
	return total, s.err
}

func (s *memSource) RecentAppointments(_ context.Context, limit int) ([]booking.Appointment, error) {
	out := slices.Clone(s.appointments)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, s.err
}

func (s *memSource) RecentLabTests(_ context.Context, limit int) ([]booking.LabTest, error) {
	out := slices.Clone(s.labTests)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, s.err
}

func (s *memSource) MonthlyAppointments(_ context.Context, year Range) ([]MonthBucket, error) {
	byMonth := map[time.Month]*MonthBucket{}
	for _, a := range s.appointments {
		if inRange(&year, a.AppointmentDate) {
			addToBucket(byMonth, a.AppointmentDate.Month(), a.ConsultationFee)
		}
	}
	return flatten(byMonth), s.err
}

func (s *memSource) MonthlyLabTests(_ context.Context, year Range) ([]MonthBucket, error) {
	byMonth := map[time.Month]*MonthBucket{}
	for _, t := range s.labTests {
		if inRange(&year, t.TestDate) {
			addToBucket(byMonth, t.TestDate.Month(), t.Amount)
		}
	}
	return flatten(byMonth), s.err
}

func addToBucket(byMonth map[time.Month]*MonthBucket, m time.Month, amount decimal.Decimal) {
	b, ok := byMonth[m]
	if !ok {
		b = &MonthBucket{Month: m, Revenue: decimal.Zero}
		byMonth[m] = b
	}
	b.Count++
	b.Revenue = b.Revenue.Add(amount)
}

func flatten(byMonth map[time.Month]*MonthBucket) []MonthBucket {
	var out []MonthBucket
	for _, b := range byMonth {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

type memDoctors map[uuid.UUID]directory.Doctor

func (d memDoctors) GetDoctor(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	doc, ok := d[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	return &doc, nil
}

func (d memDoctors) DoctorsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]directory.Doctor, error) {
	out := map[uuid.UUID]directory.Doctor{}
	for _, id := range ids {
		if doc, ok := d[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

type memUsers map[uuid.UUID]string

func (u memUsers) DisplayNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	for _, id := range ids {
		if n, ok := u[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestEngine(src Source, loc *time.Location) *Engine {
	return NewEngine(src, memDoctors{}, memUsers{}, loc, zerolog.Nop())
}

// Dashboard revenue is realized revenue (completed only) while the monthly
// series reports booked value across every status. Both numbers are pinned
// here so that any reconciliation of the two definitions is a visible change.
func TestRevenueDefinitionsDiffer(t *testing.T) {
	march := day(2025, time.March, 12)
	src := &memSource{
		appointments: []booking.Appointment{
			{AppointmentDate: march, Status: booking.StatusCompleted, ConsultationFee: money("100.00")},
			{AppointmentDate: march, Status: booking.StatusPending, ConsultationFee: money("200.00"), PaymentStatus: booking.PaymentPaid},
			{AppointmentDate: march, Status: booking.StatusCancelled, ConsultationFee: money("50.00")},
			{AppointmentDate: march, Status: booking.StatusNoShow, ConsultationFee: money("25.00"), PaymentStatus: booking.PaymentPaid},
		},
		labTests: []booking.LabTest{
			{TestDate: march, Status: booking.LabCompleted, Amount: money("30.00")},
			{TestDate: march, Status: booking.LabScheduled, Amount: money("20.00")},
		},
	}
	engine := newTestEngine(src, time.UTC)
	ctx := context.Background()

	snap, err := engine.ComputeDashboard(ctx, time.Date(2025, time.March, 20, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, money("100").Equal(snap.AppointmentRevenue), "appointment revenue %s", snap.AppointmentRevenue)
	assert.True(t, money("30").Equal(snap.LabRevenue), "lab revenue %s", snap.LabRevenue)
	assert.True(t, money("130").Equal(snap.TotalRevenue), "total revenue %s", snap.TotalRevenue)

	series, err := engine.ComputeMonthly(ctx, 2025)
	require.NoError(t, err)
	mar := series.Months[time.March-1]
	assert.True(t, money("375").Equal(mar.AppointmentRevenue), "march appointment revenue %s", mar.AppointmentRevenue)
	assert.True(t, money("50").Equal(mar.LabRevenue), "march lab revenue %s", mar.LabRevenue)
	assert.True(t, money("425").Equal(series.TotalRevenue), "series revenue %s", series.TotalRevenue)
}

func TestComputeMonthlyFillsEveryMonth(t *testing.T) {
	src := &memSource{
		appointments: []booking.Appointment{
			{AppointmentDate: day(2024, time.January, 5), ConsultationFee: money("10")},
			{AppointmentDate: day(2024, time.January, 31), ConsultationFee: money("15")},
			{AppointmentDate: day(2024, time.April, 1), ConsultationFee: money("20")},
			{AppointmentDate: day(2023, time.December, 31), ConsultationFee: money("999")},
			{AppointmentDate: day(2025, time.January, 1), ConsultationFee: money("999")},
		},
		labTests: []booking.LabTest{
			{TestDate: day(2024, time.December, 31), Amount: money("7.50")},
		},
	}

	series, err := newTestEngine(src, time.UTC).ComputeMonthly(context.Background(), 2024)
	require.NoError(t, err)

	assert.Equal(t, 2024, series.Year)
	require.Len(t, series.Months, 12)
	for i, m := range series.Months {
		assert.Equal(t, time.Month(i+1), m.Month)
	}
	assert.Equal(t, "Jan", series.Months[0].Label)
	assert.Equal(t, "Dec", series.Months[11].Label)

	assert.Equal(t, 2, series.Months[0].Appointments)
	assert.True(t, money("25").Equal(series.Months[0].AppointmentRevenue))

	mar := series.Months[time.March-1]
	assert.Equal(t, 0, mar.Appointments)
	assert.Equal(t, 0, mar.LabTests)
	assert.True(t, mar.AppointmentRevenue.IsZero())
	assert.True(t, mar.LabRevenue.IsZero())

	assert.Equal(t, 1, series.Months[11].LabTests)
	assert.Equal(t, 3, series.TotalAppointments)
	assert.Equal(t, 1, series.TotalLabTests)
	assert.True(t, money("52.50").Equal(series.TotalRevenue))
}

func TestComputeMonthlyEmptyYear(t *testing.T) {
	series, err := newTestEngine(&memSource{}, time.UTC).ComputeMonthly(context.Background(), 2030)
	require.NoError(t, err)

	for _, m := range series.Months {
		assert.Zero(t, m.Appointments)
		assert.Zero(t, m.LabTests)
	}
	assert.True(t, series.TotalRevenue.IsZero())
}

func TestComputeMonthlyRejectsBadYear(t *testing.T) {
	_, err := newTestEngine(&memSource{}, time.UTC).ComputeMonthly(context.Background(), 0)
	require.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestDashboardTodayUsesClinicDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)

	// 2025-06-01 21:00 UTC is already 2025-06-02 in the clinic
	asOf := time.Date(2025, time.June, 1, 21, 0, 0, 0, time.UTC)

	src := &memSource{
		userCreated: []time.Time{
			time.Date(2025, time.June, 1, 19, 0, 0, 0, time.UTC), // 00:00 on the 2nd locally
			time.Date(2025, time.June, 1, 18, 59, 0, 0, time.UTC),
			time.Date(2025, time.June, 2, 18, 59, 0, 0, time.UTC),
			time.Date(2025, time.June, 2, 19, 0, 0, 0, time.UTC),
		},
		appointments: []booking.Appointment{
			{AppointmentDate: day(2025, time.June, 2), Status: booking.StatusPending},
			{AppointmentDate: day(2025, time.June, 2), Status: booking.StatusConfirmed},
			{AppointmentDate: day(2025, time.June, 1), Status: booking.StatusPending},
			{AppointmentDate: day(2025, time.June, 3), Status: booking.StatusCompleted},
		},
		labTests: []booking.LabTest{
			{TestDate: day(2025, time.June, 2), Status: booking.LabScheduled},
			{TestDate: day(2025, time.June, 2), Status: booking.LabInProgress},
			{TestDate: day(2025, time.June, 2), Status: booking.LabSampleCollected},
			{TestDate: day(2025, time.May, 30), Status: booking.LabCompleted},
		},
		activeDoctors: 3,
	}

	snap, err := newTestEngine(src, loc).ComputeDashboard(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.TotalUsers)
	assert.Equal(t, 2, snap.NewUsersToday)
	assert.Equal(t, 3, snap.ActiveDoctors)

	assert.Equal(t, 4, snap.TotalAppointments)
	assert.Equal(t, 3, snap.ActiveAppointments)
	assert.Equal(t, 2, snap.TodayAppointments)
	assert.Equal(t, 2, snap.PendingAppointments)

	assert.Equal(t, 4, snap.TotalLabTests)
	assert.Equal(t, 3, snap.TodayLabTests)
	assert.Equal(t, 2, snap.PendingLabResults)
}

func TestDayBoundsAgree(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	engine := newTestEngine(&memSource{}, loc)

	instants, dates := engine.DayBounds(time.Date(2025, time.February, 10, 2, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2025, time.February, 9, 3, 0, 0, 0, time.UTC), instants.Start.UTC())
	assert.Equal(t, 24*time.Hour, instants.End.Sub(instants.Start))
	assert.Equal(t, day(2025, time.February, 9), dates.Start)
	assert.Equal(t, day(2025, time.February, 10), dates.End)
}

func TestDashboardRecentActivityProjection(t *testing.T) {
	doctorID := uuid.New()
	patientID := uuid.New()
	base := time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC)

	src := &memSource{}
	for i := 0; i < 7; i++ {
		src.appointments = append(src.appointments, booking.Appointment{
			ID:              uuid.New(),
			BookingID:       "APP00000000" + string(rune('0'+i)),
			PatientID:       patientID,
			DoctorID:        doctorID,
			AppointmentDate: day(2025, time.May, 2),
			TimeSlot:        "10:00 AM",
			Type:            booking.TypeCheckup,
			Status:          booking.StatusPending,
			ConsultationFee: money("80"),
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		})
	}
	src.labTests = []booking.LabTest{{
		ID:              uuid.New(),
		BookingID:       "LAB000000001",
		PatientID:       uuid.New(),
		TestName:        "Lipid Panel",
		TestDate:        day(2025, time.May, 3),
		Status:          booking.LabCompleted,
		Amount:          money("40"),
		ReportAvailable: true,
		CreatedAt:       base,
	}}

	engine := NewEngine(src,
		memDoctors{doctorID: {ID: doctorID, Name: "Dr. House"}},
		memUsers{patientID: "greg"},
		time.UTC, zerolog.Nop())

	snap, err := engine.ComputeDashboard(context.Background(), base)
	require.NoError(t, err)

	require.Len(t, snap.RecentAppointments, RecentLimit)
	assert.Equal(t, "APP000000006", snap.RecentAppointments[0].BookingID)
	assert.Equal(t, "APP000000002", snap.RecentAppointments[4].BookingID)
	assert.Equal(t, "greg", snap.RecentAppointments[0].Patient)
	assert.Equal(t, "Dr. House", snap.RecentAppointments[0].Doctor)
	assert.Equal(t, booking.TypeCheckup, snap.RecentAppointments[0].Type)

	require.Len(t, snap.RecentLabTests, 1)
	assert.Equal(t, directory.UnknownName, snap.RecentLabTests[0].Patient)
	assert.True(t, snap.RecentLabTests[0].ReportAvailable)
}

func TestDashboardPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := newTestEngine(&memSource{err: boom}, time.UTC).ComputeDashboard(context.Background(), time.Now())
	require.ErrorIs(t, err, boom)
}
