package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "api-server", "prod", "debug")

	log.Info().Str("booking_id", "APP123456001").Msg("booked")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api-server", line["service"])
	assert.Equal(t, "booked", line["message"])
	assert.Equal(t, "APP123456001", line["booking_id"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "api-server", "prod", "chatty")

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNilBookingMetricsIsSafe(t *testing.T) {
	var m *BookingMetrics
	ctx := context.Background()

	m.Created(ctx, "appointment")
	m.SlotConflict(ctx)
	m.IDCollision(ctx, "lab_test")
	m.Transition(ctx, "appointment", "cancelled")
}

func TestNewBookingMetrics(t *testing.T) {
	m, err := NewBookingMetrics()
	require.NoError(t, err)
	m.Created(context.Background(), "appointment")
}
