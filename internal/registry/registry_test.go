// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_RegisterQueryDeregister(t *testing.T) {
	ctx := context.Background()
	reg := NewStatic()

	inst := Instance{Service: "user-service", Addr: "http://10.0.0.1:8082", Metadata: map[string]string{"profile": "test"}}
	require.NoError(t, reg.Register(ctx, inst))

	got, err := reg.Instances(ctx, "user-service")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "test", got[0].Profile())

	// Re-registering the same address replaces, not duplicates.
	inst.Metadata = map[string]string{"profile": "prod"}
	require.NoError(t, reg.Register(ctx, inst))
	got, err = reg.Instances(ctx, "user-service")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prod", got[0].Profile())

	require.NoError(t, reg.Deregister(ctx, inst))
	got, err = reg.Instances(ctx, "user-service")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInstance_MatchesProfile(t *testing.T) {
	inst := Instance{Metadata: map[string]string{"profile": "prod"}}
	assert.True(t, inst.MatchesProfile("PROD"))
	assert.True(t, inst.MatchesProfile("prod"))
	assert.False(t, inst.MatchesProfile("test"))

	none := Instance{}
	assert.False(t, none.MatchesProfile("test"))
}

func TestHTTPRegistry_Instances(t *testing.T) {
	want := []Instance{
		{Service: "order-service", Addr: "http://10.0.0.2:8083", Metadata: map[string]string{"profile": "test"}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/instances/order-service", r.URL.Path)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	got, err := NewHTTP(srv.URL).Instances(context.Background(), "order-service")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHTTPRegistry_UnknownServiceIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	got, err := NewHTTP(srv.URL).Instances(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTTPRegistry_Register(t *testing.T) {
	var received Instance
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/instances", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	inst := Instance{Service: "auth-service", Addr: "http://10.0.0.3:8081"}
	require.NoError(t, NewHTTP(srv.URL).Register(context.Background(), inst))
	assert.Equal(t, inst, received)
}

func TestHTTPRegistry_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL).Instances(context.Background(), "user-service")
	require.Error(t, err)
}
