package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/hackgods/clinic-booking-scheduling"

// BookingMetrics counts reservation outcomes. Instruments come from the
// global meter provider, which is a no-op until an SDK provider is installed.
type BookingMetrics struct {
	created      metric.Int64Counter
	conflicts    metric.Int64Counter
	idCollisions metric.Int64Counter
	transitions  metric.Int64Counter
}

func NewBookingMetrics() (*BookingMetrics, error) {
	meter := otel.Meter(meterName)

	created, err := meter.Int64Counter(
		"booking.created",
		metric.WithDescription("Number of bookings persisted"),
	)
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter(
		"booking.slot_conflicts",
		metric.WithDescription("Number of appointment requests rejected for an occupied slot"),
	)
	if err != nil {
		return nil, err
	}

	idCollisions, err := meter.Int64Counter(
		"booking.id_collisions",
		metric.WithDescription("Number of booking identifier collisions retried"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"booking.status_transitions",
		metric.WithDescription("Number of booking status changes"),
	)
	if err != nil {
		return nil, err
	}

	return &BookingMetrics{
		created:      created,
		conflicts:    conflicts,
		idCollisions: idCollisions,
		transitions:  transitions,
	}, nil
}

func (m *BookingMetrics) Created(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *BookingMetrics) SlotConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}

func (m *BookingMetrics) IDCollision(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.idCollisions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *BookingMetrics) Transition(ctx context.Context, kind, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("to", to),
	))
}
