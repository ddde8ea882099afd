// SPDX-License-Identifier: MIT

// Package gateway implements the edge router: bearer-token enforcement,
// profile-attribute routing against the service registry, and
// reverse-proxy forwarding to the selected instance.
package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/metrics"
	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/web"
)

// ProfileHeader carries the caller-supplied routing attribute.
const ProfileHeader = "X-Profile"

// knownProfiles are the deployment profiles instances register under.
var knownProfiles = map[string]bool{"test": true, "prod": true}

// Router routes inbound requests to downstream service instances.
type Router struct {
	registry       registry.Registry
	defaultProfile string
	logger         zerolog.Logger
}

// Config collects Router dependencies.
type Config struct {
	Registry       registry.Registry
	Verifier       web.Verifier
	DefaultProfile string // applied when the header is absent or blank
	RequestsPerMin int
	Health         *health.Manager
	Logger         zerolog.Logger
}

// New builds the gateway HTTP handler. Health and metrics endpoints
// bypass authentication; everything under /api/ requires a valid bearer
// token before routing happens.
func New(cfg Config) http.Handler {
	gw := &Router{
		registry:       cfg.Registry,
		defaultProfile: cfg.DefaultProfile,
		logger:         cfg.Logger,
	}
	if gw.defaultProfile == "" {
		gw.defaultProfile = "test"
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(web.Instrument(cfg.Logger))
	r.Use(chimw.Recoverer)
	if cfg.RequestsPerMin > 0 {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMin, time.Minute))
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LiveHandler())
		r.Get("/health/ready", cfg.Health.ReadyHandler())
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(web.RequireAuth(cfg.Verifier, cfg.Logger))
		api.HandleFunc("/*", gw.route)
	})

	return r
}

// serviceFor maps a path prefix onto the destination service name.
func serviceFor(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/users"):
		return "user-service"
	case strings.HasPrefix(path, "/api/orders"):
		return "order-service"
	default:
		return ""
	}
}

// route resolves the destination instance and forwards the request.
func (gw *Router) route(w http.ResponseWriter, r *http.Request) {
	service := serviceFor(r.URL.Path)
	if service == "" {
		web.WriteNotFound(w)
		return
	}

	profile, ok := gw.resolveProfile(r)
	if !ok {
		gw.logger.Warn().
			Str(log.FieldPath, r.URL.Path).
			Str(log.FieldProfile, r.Header.Get(ProfileHeader)).
			Msg("rejected request: invalid profile header")
		metrics.RecordRoutedRequest(service, r.Header.Get(ProfileHeader), "bad_profile")
		web.WriteBadRequest(w, "missing or invalid "+ProfileHeader+" header")
		return
	}

	// Registry state is eventually consistent; query per request.
	instances, err := gw.registry.Instances(r.Context(), service)
	if err != nil {
		gw.logger.Error().Err(err).Str(log.FieldService, service).Msg("registry query failed")
		metrics.RecordRoutedRequest(service, profile, "registry_error")
		web.WriteServiceUnavailable(w, "registry unavailable")
		return
	}

	target, found := pickInstance(instances, profile)
	if !found {
		gw.logger.Warn().
			Str(log.FieldService, service).
			Str(log.FieldProfile, profile).
			Msg("no instance available for profile")
		metrics.RecordRoutedRequest(service, profile, "no_instance")
		web.WriteServiceUnavailable(w, "no "+service+" instance for profile "+profile)
		return
	}

	gw.logger.Info().
		Str(log.FieldService, service).
		Str(log.FieldProfile, profile).
		Str(log.FieldInstance, target.Addr).
		Str(log.FieldPath, r.URL.Path).
		Msg("routing request")
	metrics.RecordRoutedRequest(service, profile, "forwarded")

	gw.forward(w, r, target)
}

// resolveProfile applies the header rules: absent or blank falls back to
// the default profile; a present-but-unknown value is a client error,
// distinguished from the no-instance case.
func (gw *Router) resolveProfile(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get(ProfileHeader))
	if raw == "" {
		return gw.defaultProfile, true
	}
	profile := strings.ToLower(raw)
	if !knownProfiles[profile] {
		return "", false
	}
	return profile, true
}

// pickInstance filters by profile metadata (case-insensitive) and takes
// the first match. The choice among multiple matches is arbitrary but
// deterministic within a call; load balancing is out of scope here.
func pickInstance(instances []registry.Instance, profile string) (registry.Instance, bool) {
	for _, inst := range instances {
		if inst.MatchesProfile(profile) {
			return inst, true
		}
	}
	return registry.Instance{}, false
}

// forward proxies the request to the instance base address plus the
// original path, preserving headers.
func (gw *Router) forward(w http.ResponseWriter, r *http.Request, target registry.Instance) {
	base, err := url.Parse(target.Addr)
	if err != nil {
		gw.logger.Error().Err(err).Str(log.FieldInstance, target.Addr).Msg("invalid instance address")
		web.WriteServiceUnavailable(w, "invalid instance address")
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(base)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		gw.logger.Error().Err(err).Str(log.FieldInstance, target.Addr).Msg("downstream call failed")
		web.WriteError(w, http.StatusBadGateway, "downstream unavailable")
	}
	proxy.ServeHTTP(w, r)
}
