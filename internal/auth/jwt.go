package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Manager struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

func NewManager(secret, issuer string, ttl time.Duration) *Manager {
	return &Manager{Secret: []byte(secret), Issuer: issuer, TTL: ttl}
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue mints a token for tooling (seed, simulate). Interactive login lives
// outside this service.
func (m *Manager) Issue(actor Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			Issuer:    m.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

// Parse verifies tokenStr and returns the actor it identifies.
func (m *Manager) Parse(tokenStr string) (Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	}, jwt.WithIssuer(m.Issuer))
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Actor{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role, err := parseRole(claims.Role)
	if err != nil {
		return Actor{}, err
	}

	return Actor{ID: id, Role: role}, nil
}

func parseRole(raw string) (Role, error) {
	switch raw {
	case "patient", "user":
		return RolePatient, nil
	case "staff", "admin":
		return RoleStaff, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, raw)
	}
}
