// SPDX-License-Identifier: MIT

package registry

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/log"
)

// Server exposes a Static registry over the same wire protocol the
// HTTPRegistry client speaks. It backs the standalone registry binary
// and integration tests.
type Server struct {
	store  *Static
	logger zerolog.Logger
}

// NewServer wraps the Static store in an HTTP server handler.
func NewServer(store *Static, logger zerolog.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// Handler returns the registry HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/v1/instances/{service}", s.handleInstances)
	r.Put("/v1/instances", s.handleRegister)
	r.Delete("/v1/instances", s.handleDeregister)
	return r
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	instances, err := s.store.Instances(r.Context(), service)
	if err != nil {
		http.Error(w, "registry lookup failed", http.StatusInternalServerError)
		return
	}
	if len(instances) == 0 {
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(instances)
}

func (s *Server) decodeInstance(w http.ResponseWriter, r *http.Request) (Instance, bool) {
	var inst Instance
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&inst); err != nil {
		http.Error(w, "invalid instance body", http.StatusBadRequest)
		return Instance{}, false
	}
	if inst.Service == "" || inst.Addr == "" {
		http.Error(w, "service and addr are required", http.StatusBadRequest)
		return Instance{}, false
	}
	return inst, true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.decodeInstance(w, r)
	if !ok {
		return
	}
	if err := s.store.Register(r.Context(), inst); err != nil {
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	s.logger.Info().
		Str(log.FieldService, inst.Service).
		Str(log.FieldInstance, inst.Addr).
		Str(log.FieldProfile, inst.Profile()).
		Msg("instance registered")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.decodeInstance(w, r)
	if !ok {
		return
	}
	if err := s.store.Deregister(r.Context(), inst); err != nil {
		http.Error(w, "deregistration failed", http.StatusInternalServerError)
		return
	}
	s.logger.Info().
		Str(log.FieldService, inst.Service).
		Str(log.FieldInstance, inst.Addr).
		Msg("instance deregistered")
	w.WriteHeader(http.StatusNoContent)
}
