package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/hyperjump/docqa/internal/models"
)

// Identity headers set by the authenticating gateway in front of the server.
const (
	HeaderRole      = "X-Role"
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
)

// Roles accepted in HeaderRole.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)

type scopeKey struct{}

var errNoIdentity = errors.New("missing or invalid caller identity")

// ScopeFromHeaders resolves the caller scope from the identity headers.
func ScopeFromHeaders(h http.Header) (models.Scope, error) {
	role := strings.ToLower(strings.TrimSpace(h.Get(HeaderRole)))
	userHeader := strings.TrimSpace(h.Get(HeaderUserID))
	var userID int64
	if userHeader != "" {
		id, err := strconv.ParseInt(userHeader, 10, 64)
		if err != nil || id <= 0 {
			return models.Scope{}, errNoIdentity
		}
		userID = id
	}

	var scope models.Scope
	switch role {
	case RoleAdmin:
		scope = models.Administrator(userID)
	case RoleUser:
		scope = models.Owner(userID)
	case RoleGuest:
		scope = models.Session(strings.TrimSpace(h.Get(HeaderSessionID)))
	default:
		return models.Scope{}, errNoIdentity
	}
	if !scope.Valid() {
		return models.Scope{}, errNoIdentity
	}
	return scope, nil
}

// WithScope returns a context carrying scope.
func WithScope(ctx context.Context, scope models.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope stored by the identify middleware. Absent scopes are
// the zero Scope, which sees nothing.
func ScopeFrom(ctx context.Context) models.Scope {
	scope, _ := ctx.Value(scopeKey{}).(models.Scope)
	return scope
}

func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := ScopeFromHeaders(r.Header)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ScopeFrom(r.Context()).IsAdministrator() {
			respondError(w, http.StatusForbidden, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
