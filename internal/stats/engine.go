package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
	"github.com/hackgods/clinic-booking-scheduling/internal/directory"
)

var (
	completedAppointment = []string{string(booking.StatusCompleted)}
	activeAppointment    = []string{string(booking.StatusPending), string(booking.StatusConfirmed)}
	pendingAppointment   = []string{string(booking.StatusPending)}
	completedLabTest     = []string{string(booking.LabCompleted)}
	pendingLabTest       = []string{string(booking.LabScheduled), string(booking.LabInProgress)}
)

// Engine computes reporting views. It never reads the clock; callers pass
// the instant or year being reported on.
type Engine struct {
	source  Source
	doctors directory.DoctorDirectory
	users   directory.UserDirectory
	loc     *time.Location
	log     zerolog.Logger
}

// NewEngine returns an engine whose "today" is the calendar day in loc.
func NewEngine(source Source, doctors directory.DoctorDirectory, users directory.UserDirectory, loc *time.Location, log zerolog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{source: source, doctors: doctors, users: users, loc: loc, log: log}
}

// DayBounds returns the clinic day containing asOf: as an instant range for
// timestamps, and as a calendar-date range for booking dates. Both describe
// the same day.
func (e *Engine) DayBounds(asOf time.Time) (instants Range, dates Range) {
	local := asOf.In(e.loc)
	y, m, d := local.Date()

	start := time.Date(y, m, d, 0, 0, 0, 0, e.loc)
	instants = Range{Start: start, End: start.AddDate(0, 0, 1)}

	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dates = Range{Start: day, End: day.AddDate(0, 0, 1)}
	return instants, dates
}

func (e *Engine) ComputeDashboard(ctx context.Context, asOf time.Time) (*Snapshot, error) {
	instants, today := e.DayBounds(asOf)
	snap := &Snapshot{AsOf: asOf}

	var (
		recentAppointments []booking.Appointment
		recentLabTests     []booking.LabTest
	)

	g, gctx := errgroup.WithContext(ctx)

	count := func(dst *int, what string, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return fmt.Errorf("count %s: %w", what, err)
			}
			*dst = n
			return nil
		})
	}
	sum := func(dst *decimal.Decimal, what string, fn func(context.Context) (decimal.Decimal, error)) {
		g.Go(func() error {
			v, err := fn(gctx)
			if err != nil {
				return fmt.Errorf("sum %s: %w", what, err)
			}
			*dst = v
			return nil
		})
	}

	count(&snap.TotalUsers, "users", func(c context.Context) (int, error) {
		return e.source.CountUsers(c, nil)
	})
	count(&snap.NewUsersToday, "new users", func(c context.Context) (int, error) {
		return e.source.CountUsers(c, &instants)
	})
	count(&snap.ActiveDoctors, "active doctors", e.source.CountActiveDoctors)

	count(&snap.TotalAppointments, "appointments", func(c context.Context) (int, error) {
		return e.source.CountAppointments(c, Filter{})
	})
	count(&snap.ActiveAppointments, "active appointments", func(c context.Context) (int, error) {
		return e.source.CountAppointments(c, Filter{Statuses: activeAppointment})
	})
	count(&snap.TodayAppointments, "today's appointments", func(c context.Context) (int, error) {
		return e.source.CountAppointments(c, Filter{Dates: &today})
	})
	count(&snap.PendingAppointments, "pending appointments", func(c context.Context) (int, error) {
		return e.source.CountAppointments(c, Filter{Statuses: pendingAppointment})
	})

	count(&snap.TotalLabTests, "lab tests", func(c context.Context) (int, error) {
		return e.source.CountLabTests(c, Filter{})
	})
	count(&snap.TodayLabTests, "today's lab tests", func(c context.Context) (int, error) {
		return e.source.CountLabTests(c, Filter{Dates: &today})
	})
	count(&snap.PendingLabResults, "pending lab results", func(c context.Context) (int, error) {
		return e.source.CountLabTests(c, Filter{Statuses: pendingLabTest})
	})

	sum(&snap.AppointmentRevenue, "appointment revenue", func(c context.Context) (decimal.Decimal, error) {
		return e.source.SumAppointmentFees(c, Filter{Statuses: completedAppointment})
	})
	sum(&snap.LabRevenue, "lab revenue", func(c context.Context) (decimal.Decimal, error) {
		return e.source.SumLabTestAmounts(c, Filter{Statuses: completedLabTest})
	})

	g.Go(func() error {
		var err error
		recentAppointments, err = e.source.RecentAppointments(gctx, RecentLimit)
		if err != nil {
			return fmt.Errorf("recent appointments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recentLabTests, err = e.source.RecentLabTests(gctx, RecentLimit)
		if err != nil {
			return fmt.Errorf("recent lab tests: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.TotalRevenue = snap.AppointmentRevenue.Add(snap.LabRevenue)
	snap.RecentAppointments, snap.RecentLabTests = e.project(ctx, recentAppointments, recentLabTests)

	return snap, nil
}

// project renders recent bookings with names in place of ids. Unresolvable
// references show as directory.UnknownName.
func (e *Engine) project(ctx context.Context, appts []booking.Appointment, tests []booking.LabTest) ([]RecentAppointment, []RecentLabTest) {
	var patientIDs, doctorIDs []uuid.UUID
	for _, a := range appts {
		patientIDs = append(patientIDs, a.PatientID)
		doctorIDs = append(doctorIDs, a.DoctorID)
	}
	for _, t := range tests {
		patientIDs = append(patientIDs, t.PatientID)
	}

	names, err := e.users.DisplayNames(ctx, patientIDs)
	if err != nil {
		e.log.Warn().Err(err).Msg("resolve patient names for dashboard")
	}
	doctors, err := e.doctors.DoctorsByID(ctx, doctorIDs)
	if err != nil {
		e.log.Warn().Err(err).Msg("resolve doctors for dashboard")
	}

	recentAppts := make([]RecentAppointment, 0, len(appts))
	for _, a := range appts {
		doctorName := directory.UnknownName
		if d, ok := doctors[a.DoctorID]; ok && d.Name != "" {
			doctorName = d.Name
		}
		recentAppts = append(recentAppts, RecentAppointment{
			BookingID: a.BookingID,
			Patient:   directory.NameOr(names, a.PatientID),
			Doctor:    doctorName,
			Date:      a.AppointmentDate,
			TimeSlot:  a.TimeSlot,
			Type:      a.Type,
			Status:    a.Status,
			Amount:    a.ConsultationFee,
		})
	}

	recentTests := make([]RecentLabTest, 0, len(tests))
	for _, t := range tests {
		recentTests = append(recentTests, RecentLabTest{
			BookingID:       t.BookingID,
			Patient:         directory.NameOr(names, t.PatientID),
			TestName:        t.TestName,
			Date:            t.TestDate,
			TimeSlot:        t.TimeSlot,
			Status:          t.Status,
			Amount:          t.Amount,
			ReportAvailable: t.ReportAvailable,
		})
	}

	return recentAppts, recentTests
}

// ComputeMonthly groups the year's bookings by the month of their booking
// date. Every month is present; revenue includes bookings in any status.
func (e *Engine) ComputeMonthly(ctx context.Context, year int) (*Series, error) {
	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("year %d out of range: %w", year, booking.ErrInvalidInput)
	}

	span := Range{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	var apptBuckets, labBuckets []MonthBucket

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		apptBuckets, err = e.source.MonthlyAppointments(gctx, span)
		if err != nil {
			return fmt.Errorf("monthly appointments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		labBuckets, err = e.source.MonthlyLabTests(gctx, span)
		if err != nil {
			return fmt.Errorf("monthly lab tests: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := &Series{Year: year, TotalRevenue: decimal.Zero}
	for i := range series.Months {
		series.Months[i] = MonthStats{
			Month:              time.Month(i + 1),
			Label:              monthLabels[i],
			AppointmentRevenue: decimal.Zero,
			LabRevenue:         decimal.Zero,
		}
	}

	for _, b := range apptBuckets {
		if b.Month < time.January || b.Month > time.December {
			continue
		}
		m := &series.Months[b.Month-1]
		m.Appointments += b.Count
		m.AppointmentRevenue = m.AppointmentRevenue.Add(b.Revenue)
		series.TotalAppointments += b.Count
		series.TotalRevenue = series.TotalRevenue.Add(b.Revenue)
	}
	for _, b := range labBuckets {
		if b.Month < time.January || b.Month > time.December {
			continue
		}
		m := &series.Months[b.Month-1]
		m.LabTests += b.Count
		m.LabRevenue = m.LabRevenue.Add(b.Revenue)
		series.TotalLabTests += b.Count
		series.TotalRevenue = series.TotalRevenue.Add(b.Revenue)
	}

	return series, nil
}
