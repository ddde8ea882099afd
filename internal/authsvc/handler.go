// SPDX-License-Identifier: MIT

// Package authsvc issues signed bearer tokens and manages account
// registration. Login hands back the raw token string; everything else
// on the platform only ever sees the public verification key.
package authsvc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/store"
	"github.com/ordermesh/ordermesh/internal/token"
	"github.com/ordermesh/ordermesh/internal/web"
)

const maxBodyBytes = 1 << 20

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Service bundles the credential store, the user record store and the
// token signer behind the auth endpoints.
type Service struct {
	creds  *store.Credentials
	users  store.Users
	tokens *token.Service
	logger zerolog.Logger
}

// Config wires the auth service.
type Config struct {
	Credentials    *store.Credentials
	Users          store.Users
	Tokens         *token.Service
	RequestsPerMin int
	Health         *health.Manager
	Logger         zerolog.Logger
}

// New builds the auth HTTP handler.
func New(cfg Config) http.Handler {
	s := &Service{
		creds:  cfg.Credentials,
		users:  cfg.Users,
		tokens: cfg.Tokens,
		logger: cfg.Logger,
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

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	return r
}

func decode(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		web.WriteBadRequest(w, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		web.WriteBadRequest(w, "username and password are required")
		return
	}
	role := req.Role
	if role == "" {
		role = "USER"
	}

	if err := s.creds.Create(r.Context(), req.Username, req.Password, role); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			web.WriteConflict(w, "username already exists")
			return
		}
		s.logger.Error().Err(err).Str(log.FieldSubject, req.Username).Msg("failed to store credential")
		web.WriteError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	u, err := s.users.Save(r.Context(), store.User{Username: req.Username, Role: role})
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldSubject, req.Username).Msg("failed to store user record")
		web.WriteError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.logger.Info().
		Str(log.FieldSubject, u.Username).
		Str(log.FieldRole, u.Role).
		Int64(log.FieldUserID, u.ID).
		Msg("user registered")
	web.WriteJSON(w, http.StatusCreated, u)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		web.WriteBadRequest(w, "invalid request body")
		return
	}

	role, err := s.creds.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		// Unknown usernames and wrong passwords yield the same answer.
		s.logger.Warn().Str(log.FieldSubject, req.Username).Msg("login rejected")
		web.WriteUnauthorized(w)
		return
	}

	signed, err := s.tokens.Issue(req.Username, role)
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldSubject, req.Username).Msg("token signing failed")
		web.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.logger.Info().
		Str(log.FieldSubject, req.Username).
		Str(log.FieldRole, role).
		Msg("token issued")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(signed))
}
