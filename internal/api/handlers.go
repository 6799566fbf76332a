package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-scheduling/internal/auth"
	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
	"github.com/hackgods/clinic-booking-scheduling/internal/stats"
)

type BookingService interface {
	BookAppointment(ctx context.Context, actor auth.Actor, req booking.AppointmentRequest) (*booking.AppointmentDetail, error)
	GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*booking.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*booking.AppointmentDetail, error)
	TransitionAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID, to booking.AppointmentStatus) (*booking.AppointmentDetail, error)
	SetPaymentStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, p booking.PaymentStatus) (*booking.AppointmentDetail, error)
	ListMyAppointments(ctx context.Context, actor auth.Actor, limit, offset int) ([]booking.AppointmentDetail, int, error)
	ListAppointments(ctx context.Context, actor auth.Actor, f booking.AppointmentFilter) ([]booking.AppointmentDetail, int, error)

	BookLabTest(ctx context.Context, actor auth.Actor, req booking.LabTestRequest) (*booking.LabTestDetail, error)
	GetLabTest(ctx context.Context, actor auth.Actor, id uuid.UUID) (*booking.LabTestDetail, error)
	TransitionLabTest(ctx context.Context, actor auth.Actor, id uuid.UUID, to booking.LabTestStatus) (*booking.LabTestDetail, error)
	UploadLabReport(ctx context.Context, actor auth.Actor, id uuid.UUID, reportURL string) (*booking.LabTestDetail, error)
	ListMyLabTests(ctx context.Context, actor auth.Actor, limit, offset int) ([]booking.LabTestDetail, int, error)
	ListLabTests(ctx context.Context, actor auth.Actor, f booking.LabTestFilter) ([]booking.LabTestDetail, int, error)
}

type StatsService interface {
	ComputeDashboard(ctx context.Context, asOf time.Time) (*stats.Snapshot, error)
	ComputeMonthly(ctx context.Context, year int) (*stats.Series, error)
}

type Handler struct {
	bookings BookingService
	stats    StatsService
	validate *requestValidator
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandler(bookings BookingService, statsSvc StatsService, log zerolog.Logger) *Handler {
	return &Handler{
		bookings: bookings,
		stats:    statsSvc,
		validate: newRequestValidator(),
		log:      log,
		now:      time.Now,
	}
}

// Appointments

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req BookAppointmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	// both already validated
	doctorID, _ := uuid.Parse(req.DoctorID)
	date, _ := time.Parse(time.DateOnly, req.AppointmentDate)

	appt, err := h.bookings.BookAppointment(r.Context(), actor, booking.AppointmentRequest{
		DoctorID: doctorID,
		Date:     date,
		TimeSlot: req.TimeSlot,
		Type:     booking.AppointmentType(req.AppointmentType),
		Symptoms: req.Symptoms,
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *Handler) listMyAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePage(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	items, total, err := h.bookings.ListMyAppointments(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentList(items, total, limit, offset))
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, offset, err := parsePage(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	from, to, err := parseDateRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	f := booking.AppointmentFilter{
		Status: booking.AppointmentStatus(strings.TrimSpace(q.Get("status"))),
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_query", "unknown status")
		return
	}
	if raw := strings.TrimSpace(q.Get("patient_id")); raw != "" {
		patientID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "patient_id must be a valid UUID")
			return
		}
		f.PatientID = &patientID
	}

	items, total, err := h.bookings.ListAppointments(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentList(items, total, limit, offset))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	appt, err := h.bookings.GetAppointment(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	appt, err := h.bookings.CancelAppointment(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handler) updateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	appt, err := h.bookings.TransitionAppointment(r.Context(), actor, id, booking.AppointmentStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req PaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	appt, err := h.bookings.SetPaymentStatus(r.Context(), actor, id, booking.PaymentStatus(req.PaymentStatus))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

// Lab tests

func (h *Handler) bookLabTest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req BookLabTestRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, _ := time.Parse(time.DateOnly, req.TestDate)

	test, err := h.bookings.BookLabTest(r.Context(), actor, booking.LabTestRequest{
		TestName:        req.TestName,
		TestCategory:    req.TestCategory,
		Date:            date,
		TimeSlot:        req.TimeSlot,
		FastingRequired: req.FastingRequired,
		Instructions:    req.Instructions,
		DoctorReferral:  req.DoctorReferral,
		Amount:          req.Amount,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLabTestResponse(*test))
}

func (h *Handler) listMyLabTests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePage(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	items, total, err := h.bookings.ListMyLabTests(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, labTestList(items, total, limit, offset))
}

func (h *Handler) listLabTests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, offset, err := parsePage(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	from, to, err := parseDateRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	f := booking.LabTestFilter{
		Status: booking.LabTestStatus(strings.TrimSpace(q.Get("status"))),
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_query", "unknown status")
		return
	}

	items, total, err := h.bookings.ListLabTests(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, labTestList(items, total, limit, offset))
}

func (h *Handler) getLabTest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	test, err := h.bookings.GetLabTest(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabTestResponse(*test))
}

func (h *Handler) updateLabTestStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	test, err := h.bookings.TransitionLabTest(r.Context(), actor, id, booking.LabTestStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabTestResponse(*test))
}

func (h *Handler) uploadLabReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req ReportRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	test, err := h.bookings.UploadLabReport(r.Context(), actor, id, req.ReportURL)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLabTestResponse(*test))
}

// Admin

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	asOf := h.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "as_of must be an RFC 3339 timestamp")
			return
		}
		asOf = parsed
	}

	snap, err := h.stats.ComputeDashboard(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDashboardResponse(snap))
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "year must be a number")
			return
		}
		year = parsed
	}

	series, err := h.stats.ComputeMonthly(r.Context(), year)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, NewMonthlyResponse(series))
}

// Helpers

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r.Body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
		return auth.Actor{}, false
	}
	return actor, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePage(values url.Values) (limit, offset int, err error) {
	limit = booking.DefaultPageLimit

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}

	if limit > booking.MaxPageLimit {
		limit = booking.MaxPageLimit
	}
	return limit, offset, nil
}

func parseDateRange(values url.Values) (from, to *time.Time, err error) {
	parse := func(key string) (*time.Time, error) {
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
		}
		return &t, nil
	}

	if from, err = parse("from"); err != nil {
		return nil, nil, err
	}
	if to, err = parse("to"); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, errors.New("to must not be before from")
	}
	return from, to, nil
}

func appointmentList(items []booking.AppointmentDetail, total, limit, offset int) ListResponse[AppointmentResponse] {
	resp := ListResponse[AppointmentResponse]{
		Items:  make([]AppointmentResponse, 0, len(items)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, a := range items {
		resp.Items = append(resp.Items, toAppointmentResponse(a))
	}
	return resp
}

func labTestList(items []booking.LabTestDetail, total, limit, offset int) ListResponse[LabTestResponse] {
	resp := ListResponse[LabTestResponse]{
		Items:  make([]LabTestResponse, 0, len(items)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, t := range items {
		resp.Items = append(resp.Items, toLabTestResponse(t))
	}
	return resp
}
