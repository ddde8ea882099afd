// SPDX-License-Identifier: MIT

// Package registry provides a client for the external service registry.
// Registry state is eventually consistent: consumers re-query per request
// and never cache instance lists.
package registry

import (
	"context"
	"strings"
	"sync"
)

// MetadataProfile is the instance metadata key carrying the deployment
// profile ("test", "prod").
const MetadataProfile = "profile"

// Instance describes one live instance of a named service.
type Instance struct {
	Service  string            `json:"service"`
	Addr     string            `json:"addr"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Profile returns the instance's profile metadata attribute.
func (i Instance) Profile() string {
	return i.Metadata[MetadataProfile]
}

// MatchesProfile reports whether the instance profile equals the given
// value, compared case-insensitively.
func (i Instance) MatchesProfile(profile string) bool {
	return strings.EqualFold(i.Profile(), profile)
}

// Registry is the client-side view of the service registry.
type Registry interface {
	// Instances returns the live instances of the named service.
	// An empty slice with a nil error means the service is unknown or
	// has no live instances.
	Instances(ctx context.Context, service string) ([]Instance, error)
	// Register announces an instance at service startup.
	Register(ctx context.Context, inst Instance) error
	// Deregister withdraws an instance at shutdown.
	Deregister(ctx context.Context, inst Instance) error
}

// Static is an in-memory Registry for local wiring and tests.
type Static struct {
	mu        sync.RWMutex
	instances map[string][]Instance
}

// NewStatic creates an empty in-memory registry.
func NewStatic() *Static {
	return &Static{instances: make(map[string][]Instance)}
}

// Instances returns a copy of the registered instances for service.
func (s *Static) Instances(_ context.Context, service string) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Instance, len(s.instances[service]))
	copy(out, s.instances[service])
	return out, nil
}

// Register adds an instance, replacing any prior entry with the same address.
func (s *Static) Register(_ context.Context, inst Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.instances[inst.Service]
	for idx, existing := range list {
		if existing.Addr == inst.Addr {
			list[idx] = inst
			return nil
		}
	}
	s.instances[inst.Service] = append(list, inst)
	return nil
}

// Deregister removes an instance by address.
func (s *Static) Deregister(_ context.Context, inst Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.instances[inst.Service]
	for idx, existing := range list {
		if existing.Addr == inst.Addr {
			s.instances[inst.Service] = append(list[:idx:idx], list[idx+1:]...)
			return nil
		}
	}
	return nil
}
