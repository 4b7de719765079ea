package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// TokenVerifier is the auth collaborator. The bearer credential is opaque
// here: verification failure is a rejection, never interpreted.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

type ctxKey struct{}

// UserID returns the authenticated principal, or "" outside the middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware rejects requests without a verifiable bearer credential and
// stores the principal on the request context.
func Middleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			userID, err := v.Verify(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": "unauthorized"})
}

// StaticVerifier accepts a fixed token-to-user mapping. Development only;
// production injects the real auth service client.
type StaticVerifier map[string]string

func (s StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", ErrRejected
}

var ErrRejected = errRejected{}

type errRejected struct{}

func (errRejected) Error() string { return "credential rejected" }
