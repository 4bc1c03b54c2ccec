package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizpilot/journey-engine/internal/auth"
)

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protected(cfg auth.Config, capture *string) http.Handler {
	mw := auth.WriteAuth(cfg)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			*capture = auth.Subject(r.Context())
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestDebugTokenAccepted(t *testing.T) {
	h := protected(auth.Config{AllowDebugToken: true, DebugToken: "dev"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/journeys", nil)
	req.Header.Set("X-Debug-Token", "dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDebugTokenWrongValueRejected(t *testing.T) {
	h := protected(auth.Config{AllowDebugToken: true, DebugToken: "dev"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/journeys", nil)
	req.Header.Set("X-Debug-Token", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerTokenSubjectExtracted(t *testing.T) {
	var subject string
	h := protected(auth.Config{JWTSecret: "sekrit"}, &subject)

	req := httptest.NewRequest(http.MethodPost, "/journeys", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "sekrit", "user-42"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-42", subject)
}

func TestBearerTokenWrongSecretRejected(t *testing.T) {
	h := protected(auth.Config{JWTSecret: "sekrit"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/journeys", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "other", "user-42"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMissingTokenRejected(t *testing.T) {
	h := protected(auth.Config{JWTSecret: "sekrit"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/journeys", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
