// SPDX-License-Identifier: MIT

// Package usersvc serves the user records behind the gateway and hosts
// the order event consumer group. Single-record reads go through the
// cache; the all-users listing always hits the store so a freshly
// created user is visible immediately.
package usersvc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/cache"
	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/store"
	"github.com/ordermesh/ordermesh/internal/web"
)

const (
	cacheKeyPrefix  = "user:"
	defaultCacheTTL = 5 * time.Minute
	maxBodyBytes    = 1 << 20
)

type userRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Service exposes the user record CRUD surface.
type Service struct {
	users    store.Users
	cache    cache.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// Config wires the user service handler.
type Config struct {
	Users          store.Users
	Cache          cache.Cache
	CacheTTL       time.Duration
	Verifier       web.Verifier
	RequestsPerMin int
	Health         *health.Manager
	Logger         zerolog.Logger
}

// New builds the user service HTTP handler.
func New(cfg Config) http.Handler {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNoOp()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	s := &Service{
		users:    cfg.Users,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
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

	r.Route("/api/users", func(r chi.Router) {
		if cfg.Verifier != nil {
			r.Use(web.RequireAuth(cfg.Verifier, cfg.Logger))
		}
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

func cacheKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

// asUser recovers a user record from a cached value. The in-process
// cache hands the struct back as stored; the Redis cache hands back
// decoded JSON, which needs one more pass through the codec.
func asUser(v any) (store.User, bool) {
	if u, ok := v.(store.User); ok {
		return u, true
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return store.User{}, false
	}
	var u store.User
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == 0 {
		return store.User{}, false
	}
	return u, true
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decode(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// handleList deliberately bypasses the cache: listings must reflect the
// store, and caching the full collection would require invalidating it
// on every write.
func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		web.WriteError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	web.WriteJSON(w, http.StatusOK, users)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		web.WriteBadRequest(w, "invalid user id")
		return
	}

	if cached, ok := s.cache.Get(cacheKey(id)); ok {
		if u, ok := asUser(cached); ok {
			web.WriteJSON(w, http.StatusOK, u)
			return
		}
	}

	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			web.WriteNotFound(w)
			return
		}
		s.logger.Error().Err(err).Int64(log.FieldUserID, id).Msg("failed to load user")
		web.WriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	s.cache.Put(cacheKey(id), u, s.cacheTTL)
	web.WriteJSON(w, http.StatusOK, u)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		web.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" {
		web.WriteBadRequest(w, "username is required")
		return
	}

	u, err := s.users.Save(r.Context(), store.User{Username: req.Username, Role: req.Role})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to save user")
		web.WriteError(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	s.cache.Put(cacheKey(u.ID), u, s.cacheTTL)
	s.logger.Info().Int64(log.FieldUserID, u.ID).Str(log.FieldSubject, u.Username).Msg("user created")
	web.WriteJSON(w, http.StatusCreated, u)
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		web.WriteBadRequest(w, "invalid user id")
		return
	}
	var req userRequest
	if err := decode(r, &req); err != nil {
		web.WriteBadRequest(w, "invalid request body")
		return
	}

	if _, err := s.users.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			web.WriteNotFound(w)
			return
		}
		web.WriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	u, err := s.users.Save(r.Context(), store.User{ID: id, Username: req.Username, Role: req.Role})
	if err != nil {
		s.logger.Error().Err(err).Int64(log.FieldUserID, id).Msg("failed to update user")
		web.WriteError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	s.cache.Put(cacheKey(id), u, s.cacheTTL)
	web.WriteJSON(w, http.StatusOK, u)
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		web.WriteBadRequest(w, "invalid user id")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			web.WriteNotFound(w)
			return
		}
		s.logger.Error().Err(err).Int64(log.FieldUserID, id).Msg("failed to delete user")
		web.WriteError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	s.cache.Invalidate(cacheKey(id))
	s.logger.Info().Int64(log.FieldUserID, id).Msg("user deleted")
	w.WriteHeader(http.StatusNoContent)
}
