// SPDX-License-Identifier: MIT

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPRegistry talks JSON over HTTP to the external registry service.
type HTTPRegistry struct {
	base string
	http *http.Client
}

// NewHTTP creates a registry client for the given base URL.
func NewHTTP(base string) *HTTPRegistry {
	return &HTTPRegistry{
		base: base,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// Instances queries GET /v1/instances/{service}.
func (r *HTTPRegistry) Instances(ctx context.Context, service string) ([]Instance, error) {
	u := r.base + "/v1/instances/" + url.PathEscape(service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry query %s: %w", service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry query %s: unexpected status %d", service, resp.StatusCode)
	}

	var instances []Instance
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&instances); err != nil {
		return nil, fmt.Errorf("registry query %s: decode: %w", service, err)
	}
	return instances, nil
}

// Register announces an instance via PUT /v1/instances.
func (r *HTTPRegistry) Register(ctx context.Context, inst Instance) error {
	return r.send(ctx, http.MethodPut, inst)
}

// Deregister withdraws an instance via DELETE /v1/instances.
func (r *HTTPRegistry) Deregister(ctx context.Context, inst Instance) error {
	return r.send(ctx, http.MethodDelete, inst)
}

func (r *HTTPRegistry) send(ctx context.Context, method string, inst Instance) error {
	body, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+"/v1/instances", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry %s %s: %w", method, inst.Service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("registry %s %s: unexpected status %d", method, inst.Service, resp.StatusCode)
	}
	return nil
}
