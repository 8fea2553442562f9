package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/dmitrijs2005/sekure/internal/server/auth"
)

type ctxKey string

const (
	userIDKey   ctxKey = "userID"
	usernameKey ctxKey = "username"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get(common.AuthorizationHeader)
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(common.BearerPrefix):])
}

func (s *HTTPServer) withClaims(r *http.Request, token string) (*http.Request, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
	ctx = context.WithValue(ctx, usernameKey, claims.Username)
	return r.WithContext(ctx), nil
}

// requireAuth rejects requests without a valid access token.
func (s *HTTPServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, r, common.ErrorUnauthorized)
			return
		}
		authed, err := s.withClaims(r, token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, authed)
	})
}

// optionalAuth identifies the caller when a valid token is present. A
// missing or unusable token leaves the request anonymous.
func (s *HTTPServer) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if authed, err := s.withClaims(r, token); err == nil {
				r = authed
			}
		}
		next.ServeHTTP(w, r)
	})
}

func userID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

func username(ctx context.Context) string {
	v, _ := ctx.Value(usernameKey).(string)
	return v
}
