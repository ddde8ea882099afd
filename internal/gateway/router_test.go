// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/token"
)

type gatewayFixture struct {
	handler  http.Handler
	registry *registry.Static
	token    string
}

// echoBackend returns a server that identifies itself in the response.
func echoBackend(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", name)
		_, _ = w.Write([]byte(name + ":" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGateway(t *testing.T) *gatewayFixture {
	t.Helper()
	priv, pub, err := token.GenerateEphemeralKeys()
	require.NoError(t, err)
	tokens := token.New(priv, pub)

	raw, err := tokens.Issue("alice", "ADMIN")
	require.NoError(t, err)

	reg := registry.NewStatic()
	handler := New(Config{
		Registry:       reg,
		Verifier:       tokens,
		DefaultProfile: "test",
		Health:         health.NewManager("gateway"),
		Logger:         zerolog.Nop(),
	})
	return &gatewayFixture{handler: handler, registry: reg, token: raw}
}

func (f *gatewayFixture) register(t *testing.T, service, addr, profile string) {
	t.Helper()
	require.NoError(t, f.registry.Register(context.Background(), registry.Instance{
		Service:  service,
		Addr:     addr,
		Metadata: map[string]string{"profile": profile},
	}))
}

func (f *gatewayFixture) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Authorization", "Bearer "+f.token)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func TestRoute_ProfileSelectsInstance(t *testing.T) {
	f := newGateway(t)
	testBackend := echoBackend(t, "user-test")
	prodBackend := echoBackend(t, "user-prod")
	f.register(t, "user-service", testBackend.URL, "test")
	f.register(t, "user-service", prodBackend.URL, "prod")

	// Case-insensitive header match routes to the prod instance.
	rec := f.get("/api/users", map[string]string{ProfileHeader: "PROD"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-prod", rec.Header().Get("X-Backend"))
	assert.Equal(t, "user-prod:/api/users", rec.Body.String())

	rec = f.get("/api/users", map[string]string{ProfileHeader: "test"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-test", rec.Header().Get("X-Backend"))
}

func TestRoute_MissingHeaderUsesDefaultProfile(t *testing.T) {
	f := newGateway(t)
	testBackend := echoBackend(t, "user-test")
	f.register(t, "user-service", testBackend.URL, "test")

	rec := f.get("/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-test", rec.Header().Get("X-Backend"))
}

func TestRoute_UnknownProfileIsBadRequest(t *testing.T) {
	f := newGateway(t)
	f.register(t, "user-service", echoBackend(t, "user-test").URL, "test")

	rec := f.get("/api/users", map[string]string{ProfileHeader: "staging"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoute_NoMatchingInstanceIsServiceUnavailable(t *testing.T) {
	f := newGateway(t)
	f.register(t, "user-service", echoBackend(t, "user-test").URL, "test")

	rec := f.get("/api/users", map[string]string{ProfileHeader: "prod"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoute_PathPrefixSelectsService(t *testing.T) {
	f := newGateway(t)
	f.register(t, "order-service", echoBackend(t, "orders").URL, "test")

	rec := f.get("/api/orders/kafka", map[string]string{ProfileHeader: "test"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "orders:/api/orders/kafka", rec.Body.String())

	rec = f.get("/api/unknown", map[string]string{ProfileHeader: "test"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoute_RequiresToken(t *testing.T) {
	f := newGateway(t)
	f.register(t, "user-service", echoBackend(t, "user-test").URL, "test")

	r := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpointsBypassAuth(t *testing.T) {
	f := newGateway(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRoute_ForwardPreservesHeaders(t *testing.T) {
	f := newGateway(t)
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Correlation")
	}))
	t.Cleanup(srv.Close)
	f.register(t, "user-service", srv.URL, "test")

	rec := f.get("/api/users", map[string]string{"X-Correlation": "abc-123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", gotHeader)
}
