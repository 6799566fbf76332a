package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", "clinic", time.Hour)
	actor := Actor{ID: uuid.New(), Role: RoleStaff}

	token, err := m.Issue(actor)
	require.NoError(t, err)

	got, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
	assert.True(t, got.IsStaff())
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret", "clinic", time.Hour).Issue(Actor{ID: uuid.New(), Role: RolePatient})
	require.NoError(t, err)

	_, err = NewManager("other", "clinic", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("secret", "clinic", -time.Minute)
	token, err := m.Issue(Actor{ID: uuid.New(), Role: RolePatient})
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseMapsAdminToStaff(t *testing.T) {
	m := NewManager("secret", "clinic", time.Hour)
	id := uuid.New()
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			Issuer:    "clinic",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	require.NoError(t, err)

	actor, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: id, Role: RoleStaff}, actor)
}

func TestParseRejectsUnknownRole(t *testing.T) {
	m := NewManager("secret", "clinic", time.Hour)
	token, err := m.Issue(Actor{ID: uuid.New(), Role: Role("janitor")})
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActorOwns(t *testing.T) {
	id := uuid.New()
	assert.True(t, Actor{ID: id, Role: RolePatient}.Owns(id))
	assert.False(t, Actor{ID: id, Role: RolePatient}.Owns(uuid.New()))
	assert.False(t, Actor{Role: RolePatient}.Owns(uuid.Nil))
}
