// Package jwtauth resolves bearer tokens into sessions. Tokens are issued
// elsewhere; here they are only verified (HMAC).
package jwtauth

import (
	"strings"
	"time"

	"github.com/BearBump/WasteTrack/internal/access"
	"github.com/BearBump/WasteTrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Resolve turns an Authorization header into a session. No header means a
// loaded session without an actor; a token without a role claim gives an
// actor whose role is not resolved yet.
func (v *Verifier) Resolve(authHeader string) (access.Session, error) {
	if strings.TrimSpace(authHeader) == "" {
		return access.Session{Loaded: true}, nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return access.Session{}, errors.Wrap(ErrInvalidToken, "invalid token format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return access.Session{}, errors.Wrap(ErrInvalidToken, "invalid or expired token")
	}
	if claims.Subject == "" {
		return access.Session{}, errors.Wrap(ErrInvalidToken, "sub not found in token")
	}

	role := models.Role(claims.Role)
	if role != "" && !role.Valid() {
		return access.Session{}, errors.Wrapf(ErrInvalidToken, "unknown role %q", claims.Role)
	}
	return access.Session{
		Loaded: true,
		Actor:  &models.Actor{ID: claims.Subject, Role: role},
	}, nil
}

// Sign выпускает токен; нужен тестам и локальной отладке.
func (v *Verifier) Sign(actorID string, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}
