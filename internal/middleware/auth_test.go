package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type stubValidator struct {
	id   uuid.UUID
	role string
	err  error
}

func (s *stubValidator) ValidateToken(context.Context, string) (uuid.UUID, string, error) {
	return s.id, s.role, s.err
}

func TestJWTAuth(t *testing.T) {
	userID := uuid.New()
	mw := JWTAuth(&stubValidator{id: userID, role: "poster"})

	var seen *AuthedUser
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromCtx(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer some.jwt.token")
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if seen == nil || seen.ID != userID || seen.Role != "poster" {
		t.Fatalf("user in context = %+v", seen)
	}
}

func TestJWTAuthMissingHeader(t *testing.T) {
	mw := JWTAuth(&stubValidator{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without credentials")
	})

	for _, header := range []string{"", "Token abc", "Bearer"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		mw(next).ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestJWTAuthInvalidToken(t *testing.T) {
	mw := JWTAuth(&stubValidator{err: errors.New("expired")})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with invalid token")
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer bad")
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
