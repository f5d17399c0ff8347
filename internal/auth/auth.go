// Package auth issues and verifies the demo session tokens.
package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Username     string      `json:"username"`
	CanvasUserID int64       `json:"canvas_user_id"`
	Role         models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an HS256 token for a Canvas user.
func (i *Issuer) Issue(username string, canvasUserID int64, role models.Role) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Username:     username,
		CanvasUserID: canvasUserID,
		Role:         role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(canvasUserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify parses token and returns its claims. Expired, malformed or
// foreign-signed tokens are Unauthenticated errors.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "Session expired, please log in again")
		}
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "Invalid session token")
	}
	claims.Role = models.ParseRole(string(claims.Role))
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RoleFromEnrollments derives a role from Canvas enrollments: any teaching
// enrollment makes a teacher, everything else a student. Admins are never
// derived from enrollments.
func RoleFromEnrollments(enrollments []canvas.Enrollment) models.Role {
	for _, e := range enrollments {
		switch strings.ToLower(e.Type) {
		case "teacherenrollment", "taenrollment", "teacher", "ta":
			return models.RoleTeacher
		}
	}
	return models.RoleStudent
}
