package jwtauth

import (
	"testing"
	"time"

	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestResolve_NoHeaderIsAnonymous(t *testing.T) {
	v := NewVerifier("secret", "")
	s, err := v.Resolve("")
	require.NoError(t, err)
	require.True(t, s.Loaded)
	require.Nil(t, s.Actor)
}

func TestResolve_ValidToken(t *testing.T) {
	v := NewVerifier("secret", "wastetrack")
	tok, err := v.Sign("op-1", models.RoleOperator, time.Hour)
	require.NoError(t, err)

	s, err := v.Resolve("Bearer " + tok)
	require.NoError(t, err)
	require.True(t, s.Loaded)
	require.Equal(t, "op-1", s.Actor.ID)
	require.Equal(t, models.RoleOperator, s.Actor.Role)
}

func TestResolve_MissingRoleIsUnresolved(t *testing.T) {
	v := NewVerifier("secret", "")
	tok, err := v.Sign("u-1", "", time.Hour)
	require.NoError(t, err)

	s, err := v.Resolve("Bearer " + tok)
	require.NoError(t, err)
	require.NotNil(t, s.Actor)
	require.Equal(t, models.Role(""), s.Actor.Role)
}

func TestResolve_Rejections(t *testing.T) {
	v := NewVerifier("secret", "wastetrack")

	expired, err := v.Sign("u", models.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewVerifier("other", "wastetrack").Sign("u", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	otherIssuer, err := NewVerifier("secret", "someone").Sign("u", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "superuser",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "wastetrack"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "wastetrack"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"format":       "Token abc",
		"empty bearer": "Bearer ",
		"garbage":      "Bearer abc.def.ghi",
		"expired":      "Bearer " + expired,
		"other key":    "Bearer " + otherKey,
		"other issuer": "Bearer " + otherIssuer,
		"bad role":     "Bearer " + badRole,
		"no sub":       "Bearer " + noSub,
	} {
		_, err := v.Resolve(header)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
