// SPDX-License-Identifier: MIT

package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/token"
)

// Principal is the authenticated identity of a caller.
type Principal struct {
	Subject   string
	Authority string // role with the ROLE_ prefix guaranteed
}

type principalKey struct{}

// ExtractBearer returns the bearer token from the Authorization header,
// or "" when the header is missing or not a bearer scheme.
func ExtractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[len("Bearer "):])
}

// PrincipalFrom returns the authenticated principal stored by
// RequireAuth, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Verifier is the subset of the token service the middleware needs.
type Verifier interface {
	Verify(raw string) (token.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token. Every
// verification failure is treated as unauthenticated; none propagates
// past this boundary.
func RequireAuth(verifier Verifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractBearer(r)
			if raw == "" {
				logger.Warn().Str(log.FieldPath, r.URL.Path).Msg("missing or invalid authorization header")
				WriteUnauthorized(w)
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				logger.Warn().Err(err).Str(log.FieldPath, r.URL.Path).Msg("token verification failed")
				WriteUnauthorized(w)
				return
			}

			principal := Principal{Subject: claims.Subject, Authority: claims.Authority()}
			logger.Debug().
				Str(log.FieldSubject, principal.Subject).
				Str(log.FieldRole, principal.Authority).
				Msg("token verified")

			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
