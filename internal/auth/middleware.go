// Package auth extracts the request principal for the HTTP surface. The
// engine itself treats user ids as opaque strings; this middleware only
// decides whether a mutating request may proceed and who it claims to be.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const ctxKeySubject ctxKey = "journey.subject"

// Subject returns the authenticated subject stored in the request context,
// or "" when the request came in on a debug token.
func Subject(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySubject).(string); ok {
		return v
	}
	return ""
}

// Config controls the write-auth middleware.
type Config struct {
	// AllowDebugToken admits requests carrying X-Debug-Token equal to
	// DebugToken. Development only.
	AllowDebugToken bool
	DebugToken      string

	// JWTSecret verifies HS256 bearer tokens; the sub claim becomes the
	// request subject.
	JWTSecret string
}

// WriteAuth gates mutating routes: a debug token in development, else a
// verified bearer JWT.
func WriteAuth(cfg Config) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AllowDebugToken {
				if token := r.Header.Get("X-Debug-Token"); token != "" && token == cfg.DebugToken {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "debug token required", http.StatusUnauthorized)
				return
			}
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "bearer token required", http.StatusUnauthorized)
				return
			}
			subject, err := verifySubject(raw, cfg.JWTSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeySubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

func verifySubject(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("missing sub claim")
	}
	return subject, nil
}
