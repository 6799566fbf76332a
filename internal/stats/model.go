package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
)

// RecentLimit is how many of the newest bookings of each kind a dashboard shows.
const RecentLimit = 5

var monthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Snapshot is the admin dashboard as of one instant. Revenue here is realized
// revenue: only completed bookings count, whatever their payment status.
type Snapshot struct {
	AsOf time.Time

	TotalUsers    int
	NewUsersToday int
	ActiveDoctors int

	TotalAppointments   int
	ActiveAppointments  int
	TodayAppointments   int
	PendingAppointments int

	TotalLabTests     int
	TodayLabTests     int
	PendingLabResults int

	AppointmentRevenue decimal.Decimal
	LabRevenue         decimal.Decimal
	TotalRevenue       decimal.Decimal

	RecentAppointments []RecentAppointment
	RecentLabTests     []RecentLabTest
}

// RecentAppointment is a display-safe appointment projection. It carries
// names, not internal ids.
type RecentAppointment struct {
	BookingID string
	Patient   string
	Doctor    string
	Date      time.Time
	TimeSlot  string
	Type      booking.AppointmentType
	Status    booking.AppointmentStatus
	Amount    decimal.Decimal
}

type RecentLabTest struct {
	BookingID       string
	Patient         string
	TestName        string
	Date            time.Time
	TimeSlot        string
	Status          booking.LabTestStatus
	Amount          decimal.Decimal
	ReportAvailable bool
}

// Series is the per-month breakdown of one calendar year, grouped by the
// booking date. Revenue here is booked value: every status counts, which is
// deliberately different from Snapshot revenue.
type Series struct {
	Year   int
	Months [12]MonthStats

	TotalAppointments int
	TotalLabTests     int
	TotalRevenue      decimal.Decimal
}

type MonthStats struct {
	Month              time.Month
	Label              string
	Appointments       int
	LabTests           int
	AppointmentRevenue decimal.Decimal
	LabRevenue         decimal.Decimal
}

// MonthBucket is one grouped row of a monthly aggregate.
type MonthBucket struct {
	Month   time.Month
	Count   int
	Revenue decimal.Decimal
}
