// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for the
// ordermesh services. Probe endpoints bypass authentication.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the result of a component health check.
type CheckResult struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Response is the full health check response body.
type Response struct {
	Status    Status                 `json:"status"`
	Service   string                 `json:"service"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckerFunc) Name() string { return c.CheckName }

func (c CheckerFunc) Check(ctx context.Context) CheckResult {
	if err := c.Fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// Manager runs registered checkers and serves probe endpoints.
type Manager struct {
	service  string
	checkers []Checker
}

// NewManager creates a health manager for the named service.
func NewManager(service string) *Manager {
	return &Manager{service: service}
}

// Register adds a checker.
func (m *Manager) Register(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Live reports process liveness: always healthy while the process runs.
func (m *Manager) Live() Response {
	return Response{Status: StatusHealthy, Service: m.service, Timestamp: time.Now().UTC()}
}

// Ready runs all checkers. Any unhealthy dependency makes the service
// not ready.
func (m *Manager) Ready(ctx context.Context) Response {
	resp := Response{
		Status:    StatusHealthy,
		Service:   m.service,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(m.checkers)),
	}
	for _, c := range m.checkers {
		result := c.Check(ctx)
		resp.Checks[c.Name()] = result
		if result.Status == StatusUnhealthy {
			resp.Status = StatusUnhealthy
		}
	}
	return resp
}

// LiveHandler serves the liveness probe.
func (m *Manager) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, m.Live())
	}
}

// ReadyHandler serves the readiness probe.
func (m *Manager) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := m.Ready(ctx)
		code := http.StatusOK
		if resp.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeProbe(w, code, resp)
	}
}

func writeProbe(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
