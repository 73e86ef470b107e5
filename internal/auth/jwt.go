package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hadiqa-go/internal/hq"
	"hadiqa-go/internal/httputil"
)

// DefaultTokenDuration is the lifetime of admin tokens minted by the CLI.
const DefaultTokenDuration = 30 * 24 * time.Hour

type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("no bearer token")

// GenerateAdminToken signs a token granting the admin capability.
func GenerateAdminToken(secret, subject string, now time.Time, duration time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is empty")
	}
	claims := &Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Gate turns bearer tokens into hq.Capability values.
type Gate struct {
	secret string
}

func NewGate(secret string) *Gate {
	return &Gate{secret: secret}
}

// Capability returns the capability granted by the request's bearer token.
// A request without a token gets the zero capability and ErrNoToken.
func (g *Gate) Capability(r *http.Request) (hq.Capability, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return hq.Capability{}, ErrNoToken
	}
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return hq.Capability{}, fmt.Errorf("invalid authorization header format")
	}
	if g.secret == "" {
		return hq.Capability{}, fmt.Errorf("admin tokens are disabled")
	}
	claims, err := ValidateToken(g.secret, tokenStr)
	if err != nil {
		return hq.Capability{}, err
	}
	return hq.Capability{Admin: claims.Admin, Subject: claims.Subject}, nil
}

type contextKey string

const capabilityKey contextKey = "capability"

// RequireAdmin rejects requests whose token does not grant admin.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capability, err := g.Capability(r)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "valid admin token required")
			return
		}
		if !capability.Admin {
			httputil.WriteError(w, http.StatusForbidden, hq.ErrAdminRequired.Error())
			return
		}
		ctx := context.WithValue(r.Context(), capabilityKey, capability)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CapabilityFromContext returns the capability stored by RequireAdmin.
func CapabilityFromContext(ctx context.Context) hq.Capability {
	c, _ := ctx.Value(capabilityKey).(hq.Capability)
	return c
}
