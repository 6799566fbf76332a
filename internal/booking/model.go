package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow-up"
	TypeCheckup      AppointmentType = "checkup"
	TypeEmergency    AppointmentType = "emergency"
	TypeVaccination  AppointmentType = "vaccination"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeCheckup, TypeEmergency, TypeVaccination:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

type LabTestStatus string

const (
	LabScheduled       LabTestStatus = "scheduled"
	LabSampleCollected LabTestStatus = "sample-collected"
	LabInProgress      LabTestStatus = "in-progress"
	LabCompleted       LabTestStatus = "completed"
	LabCancelled       LabTestStatus = "cancelled"
)

const DefaultReportTime = "24 hours"

// Appointment is a reservation of a doctor's time. ConsultationFee is copied
// from the doctor at booking time and never follows later fee changes.
type Appointment struct {
	ID              uuid.UUID
	BookingID       string
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	AppointmentDate time.Time
	TimeSlot        string
	Type            AppointmentType
	Symptoms        string
	Notes           string
	Status          AppointmentStatus
	ConsultationFee decimal.Decimal
	PaymentStatus   PaymentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LabTest is a reservation of a diagnostic test slot.
type LabTest struct {
	ID              uuid.UUID
	BookingID       string
	PatientID       uuid.UUID
	TestName        string
	TestCategory    string
	TestDate        time.Time
	TimeSlot        string
	FastingRequired bool
	Instructions    string
	DoctorReferral  string
	Status          LabTestStatus
	ReportTime      string
	Amount          decimal.Decimal
	ReportURL       string
	ReportAvailable bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppointmentDetail is an appointment joined with the human readable names
// of the people it references.
type AppointmentDetail struct {
	Appointment
	PatientName    string
	DoctorName     string
	Specialization string
}

type LabTestDetail struct {
	LabTest
	PatientName string
}

// NormalizeDate truncates t to midnight UTC of its calendar day, so two
// instants on the same calendar day compare equal.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
