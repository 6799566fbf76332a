package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrDoctorNotFound = errors.New("doctor not found")

const UnknownName = "Unknown"

type Doctor struct {
	ID              uuid.UUID
	Name            string
	Specialization  string
	ConsultationFee decimal.Decimal
	Active          bool
}

// DoctorDirectory is the read-only doctor roster.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	DoctorsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Doctor, error)
}

// UserDirectory resolves user ids to display names. Ids that do not resolve
// are absent from the returned map.
type UserDirectory interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// NameOr returns names[id], or UnknownName when the id did not resolve.
func NameOr(names map[uuid.UUID]string, id uuid.UUID) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return UnknownName
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
