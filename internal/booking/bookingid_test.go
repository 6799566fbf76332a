package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	g := &IDGenerator{
		now:  func() time.Time { return time.UnixMilli(1736500123456) },
		rand: func(int) int { return 7 },
	}

	assert.Equal(t, "APP123456007", g.Generate(KindAppointment))
	assert.Equal(t, "LAB123456007", g.Generate(KindLabTest))
}

func TestGeneratePadsShortValues(t *testing.T) {
	g := &IDGenerator{
		now:  func() time.Time { return time.UnixMilli(2_000_000_042) },
		rand: func(int) int { return 0 },
	}

	assert.Equal(t, "APP000042000", g.Generate(KindAppointment))
}

func TestGenerateWithRealSources(t *testing.T) {
	id := NewIDGenerator().Generate(KindLabTest)
	assert.Regexp(t, `^LAB\d{9}$`, id)
}

func TestAssignKeepsExistingIdentifier(t *testing.T) {
	g := NewIDGenerator()

	id := "APP000001001"
	g.Assign(KindAppointment, &id)
	assert.Equal(t, "APP000001001", id)

	var fresh string
	g.Assign(KindAppointment, &fresh)
	assert.NotEmpty(t, fresh)
}

func TestSlotKeyNormalizes(t *testing.T) {
	doctor := uuid.MustParse("6f1c3c52-2f7a-4b7e-9d55-2d1c0c7e9a10")

	a := NewSlotKey(doctor, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "10:00 AM")
	b := NewSlotKey(doctor, time.Date(2025, 1, 15, 23, 59, 0, 0, time.UTC), " 10:00 AM ")

	assert.Equal(t, a, b)
	assert.Equal(t, "6f1c3c52-2f7a-4b7e-9d55-2d1c0c7e9a10:2025-01-15:10:00 AM", a.String())
}

func TestConflictCheckerIgnoresFreeSlot(t *testing.T) {
	repo := newMemRepository()
	checker := NewConflictChecker(repo)
	key := NewSlotKey(uuid.New(), time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "10:00 AM")

	conflict, err := checker.HasConflict(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, conflict)

	repo.appointments[uuid.New()] = Appointment{
		DoctorID:        key.DoctorID,
		AppointmentDate: key.Date,
		TimeSlot:        key.TimeSlot,
		Status:          StatusNoShow,
	}
	conflict, err = checker.HasConflict(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, conflict)

	repo.appointments[uuid.New()] = Appointment{
		DoctorID:        key.DoctorID,
		AppointmentDate: key.Date,
		TimeSlot:        key.TimeSlot,
		Status:          StatusConfirmed,
	}
	conflict, err = checker.HasConflict(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, conflict)
}
