package booking

import "errors"

var (
	ErrResourceNotFound     = errors.New("resource not found")
	ErrResourceUnavailable  = errors.New("resource unavailable")
	ErrSlotConflict         = errors.New("this time slot is already booked")
	ErrInvalidAmount        = errors.New("amount is required and cannot be negative")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrAlreadyTerminal      = errors.New("booking is already in a terminal status")
	ErrTransientPersistence = errors.New("transient persistence failure")
	ErrInvalidInput         = errors.New("invalid input")
)
