package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-scheduling/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_failed",
		Details: "request failed validation",
		Fields:  validationDetails(err),
	})
}

// writeServiceError maps a booking or stats failure to a response. Messages
// are fixed per outcome so storage detail never reaches the caller;
// unclassified failures are logged and reported as internal errors.
func writeServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, booking.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount is required and cannot be negative")
	case errors.Is(err, booking.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, "resource_not_found", "the requested resource does not exist")
	case errors.Is(err, booking.ErrResourceUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "resource_unavailable", "doctor is not available for appointments")
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "this time slot is already booked")
	case errors.Is(err, booking.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not_authorized", "you are not allowed to perform this action")
	case errors.Is(err, booking.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", "booking is already in a final status")
	case errors.Is(err, booking.ErrTransientPersistence):
		log.Warn().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("transient persistence failure")
		writeError(w, http.StatusServiceUnavailable, "transient_failure", "could not complete the request, please retry")
	default:
		log.Error().Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
