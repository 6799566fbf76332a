package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
	"github.com/hackgods/clinic-booking-scheduling/internal/stats"
)

type BookAppointmentRequest struct {
	DoctorID        string `json:"doctor_id" validate:"required,uuid"`
	AppointmentDate string `json:"appointment_date" validate:"required,date"`
	TimeSlot        string `json:"time_slot" validate:"required,max=64"`
	AppointmentType string `json:"appointment_type" validate:"omitempty,oneof=consultation follow-up checkup emergency vaccination"`
	Symptoms        string `json:"symptoms" validate:"max=2000"`
	Notes           string `json:"notes" validate:"max=2000"`
}

type BookLabTestRequest struct {
	TestName        string           `json:"test_name" validate:"required,max=200"`
	TestCategory    string           `json:"test_category" validate:"required,max=100"`
	TestDate        string           `json:"test_date" validate:"required,date"`
	TimeSlot        string           `json:"time_slot" validate:"required,max=64"`
	FastingRequired bool             `json:"fasting_required"`
	Instructions    string           `json:"instructions" validate:"max=2000"`
	DoctorReferral  string           `json:"doctor_referral" validate:"max=200"`
	Amount          *decimal.Decimal `json:"amount"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type PaymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid refunded"`
}

type ReportRequest struct {
	ReportURL string `json:"report_url" validate:"required,max=2048"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	BookingID       string    `json:"booking_id"`
	Patient         string    `json:"patient"`
	Doctor          string    `json:"doctor"`
	Specialization  string    `json:"specialization"`
	AppointmentDate string    `json:"appointment_date"`
	TimeSlot        string    `json:"time_slot"`
	AppointmentType string    `json:"appointment_type"`
	Symptoms        string    `json:"symptoms,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Status          string    `json:"status"`
	ConsultationFee string    `json:"consultation_fee"`
	PaymentStatus   string    `json:"payment_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type LabTestResponse struct {
	ID              uuid.UUID `json:"id"`
	BookingID       string    `json:"booking_id"`
	Patient         string    `json:"patient"`
	TestName        string    `json:"test_name"`
	TestCategory    string    `json:"test_category"`
	TestDate        string    `json:"test_date"`
	TimeSlot        string    `json:"time_slot"`
	FastingRequired bool      `json:"fasting_required"`
	Instructions    string    `json:"instructions,omitempty"`
	DoctorReferral  string    `json:"doctor_referral,omitempty"`
	Status          string    `json:"status"`
	ReportTime      string    `json:"report_time"`
	Amount          string    `json:"amount"`
	ReportURL       string    `json:"report_url,omitempty"`
	ReportAvailable bool      `json:"report_available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type DashboardStats struct {
	TotalUsers          int    `json:"total_users"`
	NewUsersToday       int    `json:"new_users_today"`
	ActiveDoctors       int    `json:"active_doctors"`
	TotalAppointments   int    `json:"total_appointments"`
	ActiveAppointments  int    `json:"active_appointments"`
	TodayAppointments   int    `json:"today_appointments"`
	PendingAppointments int    `json:"pending_appointments"`
	TotalLabTests       int    `json:"total_lab_tests"`
	TodayLabTests       int    `json:"today_lab_tests"`
	PendingLabResults   int    `json:"pending_lab_results"`
	AppointmentRevenue  string `json:"appointment_revenue"`
	LabRevenue          string `json:"lab_revenue"`
	TotalRevenue        string `json:"total_revenue"`
}

type RecentAppointmentResponse struct {
	BookingID string `json:"booking_id"`
	Patient   string `json:"patient"`
	Doctor    string `json:"doctor"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
}

type RecentLabTestResponse struct {
	BookingID       string `json:"booking_id"`
	Patient         string `json:"patient"`
	Test            string `json:"test"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	ReportAvailable bool   `json:"report_available"`
}

type DashboardResponse struct {
	AsOf               time.Time                   `json:"as_of"`
	Stats              DashboardStats              `json:"stats"`
	RecentAppointments []RecentAppointmentResponse `json:"recent_appointments"`
	RecentLabTests     []RecentLabTestResponse     `json:"recent_lab_tests"`
}

type MonthResponse struct {
	Month              int    `json:"month"`
	Label              string `json:"label"`
	Appointments       int    `json:"appointments"`
	LabTests           int    `json:"lab_tests"`
	AppointmentRevenue string `json:"appointment_revenue"`
	LabRevenue         string `json:"lab_revenue"`
}

type MonthlyResponse struct {
	Year              int             `json:"year"`
	Months            []MonthResponse `json:"months"`
	TotalAppointments int             `json:"total_appointments"`
	TotalLabTests     int             `json:"total_lab_tests"`
	TotalRevenue      string          `json:"total_revenue"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toAppointmentResponse(a booking.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		BookingID:       a.BookingID,
		Patient:         a.PatientName,
		Doctor:          a.DoctorName,
		Specialization:  a.Specialization,
		AppointmentDate: a.AppointmentDate.Format(time.DateOnly),
		TimeSlot:        a.TimeSlot,
		AppointmentType: string(a.Type),
		Symptoms:        a.Symptoms,
		Notes:           a.Notes,
		Status:          string(a.Status),
		ConsultationFee: money(a.ConsultationFee),
		PaymentStatus:   string(a.PaymentStatus),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toLabTestResponse(t booking.LabTestDetail) LabTestResponse {
	return LabTestResponse{
		ID:              t.ID,
		BookingID:       t.BookingID,
		Patient:         t.PatientName,
		TestName:        t.TestName,
		TestCategory:    t.TestCategory,
		TestDate:        t.TestDate.Format(time.DateOnly),
		TimeSlot:        t.TimeSlot,
		FastingRequired: t.FastingRequired,
		Instructions:    t.Instructions,
		DoctorReferral:  t.DoctorReferral,
		Status:          string(t.Status),
		ReportTime:      t.ReportTime,
		Amount:          money(t.Amount),
		ReportURL:       t.ReportURL,
		ReportAvailable: t.ReportAvailable,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func NewDashboardResponse(s *stats.Snapshot) DashboardResponse {
	resp := DashboardResponse{
		AsOf: s.AsOf,
		Stats: DashboardStats{
			TotalUsers:          s.TotalUsers,
			NewUsersToday:       s.NewUsersToday,
			ActiveDoctors:       s.ActiveDoctors,
			TotalAppointments:   s.TotalAppointments,
			ActiveAppointments:  s.ActiveAppointments,
			TodayAppointments:   s.TodayAppointments,
			PendingAppointments: s.PendingAppointments,
			TotalLabTests:       s.TotalLabTests,
			TodayLabTests:       s.TodayLabTests,
			PendingLabResults:   s.PendingLabResults,
			AppointmentRevenue:  money(s.AppointmentRevenue),
			LabRevenue:          money(s.LabRevenue),
			TotalRevenue:        money(s.TotalRevenue),
		},
		RecentAppointments: make([]RecentAppointmentResponse, 0, len(s.RecentAppointments)),
		RecentLabTests:     make([]RecentLabTestResponse, 0, len(s.RecentLabTests)),
	}

	for _, a := range s.RecentAppointments {
		resp.RecentAppointments = append(resp.RecentAppointments, RecentAppointmentResponse{
			BookingID: a.BookingID,
			Patient:   a.Patient,
			Doctor:    a.Doctor,
			Date:      a.Date.Format(time.DateOnly),
			TimeSlot:  a.TimeSlot,
			Type:      string(a.Type),
			Status:    string(a.Status),
			Amount:    money(a.Amount),
		})
	}
	for _, t := range s.RecentLabTests {
		resp.RecentLabTests = append(resp.RecentLabTests, RecentLabTestResponse{
			BookingID:       t.BookingID,
			Patient:         t.Patient,
			Test:            t.TestName,
			Date:            t.Date.Format(time.DateOnly),
			TimeSlot:        t.TimeSlot,
			Status:          string(t.Status),
			Amount:          money(t.Amount),
			ReportAvailable: t.ReportAvailable,
		})
	}

	return resp
}

func NewMonthlyResponse(s *stats.Series) MonthlyResponse {
	resp := MonthlyResponse{
		Year:              s.Year,
		Months:            make([]MonthResponse, 0, len(s.Months)),
		TotalAppointments: s.TotalAppointments,
		TotalLabTests:     s.TotalLabTests,
		TotalRevenue:      money(s.TotalRevenue),
	}
	for _, m := range s.Months {
		resp.Months = append(resp.Months, MonthResponse{
			Month:              int(m.Month),
			Label:              m.Label,
			Appointments:       m.Appointments,
			LabTests:           m.LabTests,
			AppointmentRevenue: money(m.AppointmentRevenue),
			LabRevenue:         money(m.LabRevenue),
		})
	}
	return resp
}
