// SPDX-License-Identifier: MIT

package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/log"
)

// Instrument logs entry, exit, duration and status for every request.
// Instrumentation is explicit function composition, not implicit
// weaving: this middleware is the only place request logging happens.
func Instrument(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger.Debug().
				Str("method", r.Method).
				Str(log.FieldPath, r.URL.Path).
				Msg("request received")

			next.ServeHTTP(ww, r)

			evt := logger.Info()
			if ww.Status() >= http.StatusInternalServerError {
				evt = logger.Error()
			}
			evt.
				Str("method", r.Method).
				Str(log.FieldPath, r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
