package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlotKey identifies a reservable doctor slot. Slot labels are opaque and
// compared only for exact equality.
type SlotKey struct {
	DoctorID uuid.UUID
	Date     time.Time
	TimeSlot string
}

func NewSlotKey(doctorID uuid.UUID, date time.Time, timeSlot string) SlotKey {
	return SlotKey{
		DoctorID: doctorID,
		Date:     NormalizeDate(date),
		TimeSlot: strings.TrimSpace(timeSlot),
	}
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DoctorID, k.Date.Format(time.DateOnly), k.TimeSlot)
}

// SlotReader finds the pending or confirmed appointment occupying a slot,
// returning ErrResourceNotFound when the slot is free.
type SlotReader interface {
	FindActiveAppointmentForSlot(ctx context.Context, key SlotKey) (*Appointment, error)
}

// ConflictChecker is the fast pre-check in front of the storage constraint.
// It is advisory: the unique index decides races.
type ConflictChecker struct {
	slots SlotReader
}

func NewConflictChecker(slots SlotReader) *ConflictChecker {
	return &ConflictChecker{slots: slots}
}

func (c *ConflictChecker) HasConflict(ctx context.Context, key SlotKey) (bool, error) {
	existing, err := c.slots.FindActiveAppointmentForSlot(ctx, key)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check slot %s: %w", key, err)
	}
	return existing != nil && existing.Status.Blocking(), nil
}
