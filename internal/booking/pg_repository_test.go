package booking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyWriteError(t *testing.T) {
	plain := errors.New("connection reset by peer")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "active slot taken",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_key"},
			want: ErrSlotConflict,
		},
		{
			name: "wrapped active slot taken",
			err:  fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_key"}),
			want: ErrSlotConflict,
		},
		{
			name: "appointment booking id collision",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "appointments_booking_id_key"},
			want: ErrTransientPersistence,
		},
		{
			name: "lab test booking id collision",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "lab_tests_booking_id_key"},
			want: ErrTransientPersistence,
		},
		{
			name: "serialization failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: ErrTransientPersistence,
		},
		{
			name: "deadlock detected",
			err:  &pgconn.PgError{Code: "40P01"},
			want: ErrTransientPersistence,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyWriteError(tc.err), tc.want)
		})
	}

	t.Run("booking id collision is not a slot conflict", func(t *testing.T) {
		got := classifyWriteError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_booking_id_key"})
		assert.NotErrorIs(t, got, ErrSlotConflict)
	})

	t.Run("other postgres errors pass through", func(t *testing.T) {
		checkViolation := &pgconn.PgError{Code: "23514", ConstraintName: "lab_tests_report_requires_url"}
		got := classifyWriteError(checkViolation)
		assert.Same(t, checkViolation, got)
		assert.NotErrorIs(t, got, ErrTransientPersistence)
	})

	t.Run("non postgres errors pass through", func(t *testing.T) {
		got := classifyWriteError(plain)
		assert.Same(t, plain, got)
	})
}
