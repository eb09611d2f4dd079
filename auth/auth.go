// Package auth implements the credential gate (§6): validating the
// presented API key and classifying its role against static, env-loaded
// key lists.
package auth

import (
	"context"
	"net/http"

	"github.com/sentineldev/sentinel-gateway/config"
	"github.com/sentineldev/sentinel-gateway/errs"
)

// Role is the classification fed to downstream rate limiting and admin
// route gating.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type contextKey int

const (
	apiKeyContextKey contextKey = iota
	roleContextKey
)

// Gate validates a presented API key against the admin/user key lists
// loaded at startup.
type Gate struct {
	header    string
	adminKeys map[string]bool
	userKeys  map[string]bool
	debug     bool
}

// New builds a Gate from configuration.
func New(cfg *config.Config) *Gate {
	return &Gate{
		header:    cfg.APIKeyHeader,
		adminKeys: cfg.AdminKeys,
		userKeys:  cfg.UserKeys,
		debug:     cfg.DebugMode,
	}
}

// Authenticate extracts and classifies the presented key.
func (g *Gate) Authenticate(r *http.Request) (string, Role, error) {
	key := r.Header.Get(g.header)
	if key == "" {
		return "", "", errs.New(errs.AuthMissing, "missing "+g.header+" header")
	}
	if g.adminKeys[key] {
		return key, RoleAdmin, nil
	}
	if g.userKeys[key] {
		return key, RoleUser, nil
	}
	if g.debug && len(g.adminKeys) == 0 && len(g.userKeys) == 0 {
		// No key lists configured and debug mode is on: treat any
		// presented key as an admin so local development doesn't
		// require seeding ADMIN_API_KEYS/USER_API_KEYS.
		return key, RoleAdmin, nil
	}
	return "", "", errs.New(errs.AuthInvalid, "unrecognized API key")
}

// Middleware authenticates every request and stores the key/role in
// context for downstream handlers (rate limiter, admin route check).
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, role, err := g.Authenticate(r)
		if err != nil {
			errs.WriteHTTP(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
		ctx = context.WithValue(ctx, roleContextKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin requests with AuthForbidden.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRole(r.Context()) != RoleAdmin {
			errs.WriteHTTP(w, errs.New(errs.AuthForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetAPIKey reads the authenticated key from context.
func GetAPIKey(ctx context.Context) string {
	v, _ := ctx.Value(apiKeyContextKey).(string)
	return v
}

// GetRole reads the authenticated role from context.
func GetRole(ctx context.Context) Role {
	v, _ := ctx.Value(roleContextKey).(Role)
	return v
}

// RedactKey truncates an API key to its first 8 characters for logging.
func RedactKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
