// SPDX-License-Identifier: MIT

package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/resilience"
	"github.com/ordermesh/ordermesh/internal/store"
)

// ErrNoUsers is the business failure raised when the user service
// answers with an empty collection. It is never retried.
var ErrNoUsers = errors.New("no users available")

const defaultUserService = "user-service"

// UserClient fetches user records from the user service over HTTP,
// resolving the target address through the registry per call.
type UserClient struct {
	registry registry.Registry
	service  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewUserClient creates a client against the given registry. service is
// the registry name the user service registers under; blank selects the
// default.
func NewUserClient(reg registry.Registry, service string, logger zerolog.Logger) *UserClient {
	if service == "" {
		service = defaultUserService
	}
	return &UserClient{
		registry: reg,
		service:  service,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// FetchAll retrieves every user record. The bearer token, when present,
// is forwarded so the user service can authenticate the call.
func (c *UserClient) FetchAll(ctx context.Context, bearer string) ([]store.User, error) {
	instances, err := c.registry.Instances(ctx, c.service)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", c.service, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("resolve %s: no instances", c.service)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instances[0].Addr+"/api/users", nil)
	if err != nil {
		return nil, fmt.Errorf("build user request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch users: unexpected status %d", resp.StatusCode)
	}

	var users []store.User
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// UserFetch is the resilient fetch function the order handler calls
// while creating an order.
type UserFetch func(ctx context.Context, bearer string) ([]store.User, error)

// NewResilientUserFetch wraps the client in the full resilience
// pipeline: registry presence check, bounded retry, circuit breaker and
// an empty-list fallback. An empty answer from a healthy user service is
// flagged as a business failure so the retry layer leaves it alone.
func NewResilientUserFetch(client *UserClient, reg registry.Registry, breaker *resilience.CircuitBreaker, logger zerolog.Logger) UserFetch {
	caller := resilience.NewCaller(resilience.CallerConfig[[]store.User]{
		Service:  client.service,
		Registry: reg,
		Breaker:  breaker,
		Fallback: func(error) []store.User { return nil },
		Logger:   logger,
	})
	return func(ctx context.Context, bearer string) ([]store.User, error) {
		return caller.Call(ctx, func(ctx context.Context) ([]store.User, error) {
			users, err := client.FetchAll(ctx, bearer)
			if err != nil {
				return nil, err
			}
			if len(users) == 0 {
				return nil, resilience.Permanent(ErrNoUsers)
			}
			return users, nil
		})
	}
}
