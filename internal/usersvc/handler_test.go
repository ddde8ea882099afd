// SPDX-License-Identifier: MIT

package usersvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermesh/ordermesh/internal/cache"
	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/store"
	"github.com/ordermesh/ordermesh/internal/token"
)

type userFixture struct {
	handler http.Handler
	users   store.Users
	cache   cache.Cache
	token   string
}

func newUserService(t *testing.T) *userFixture {
	t.Helper()
	priv, pub, err := token.GenerateEphemeralKeys()
	require.NoError(t, err)
	tokens := token.New(priv, pub)
	raw, err := tokens.Issue("tester", "ADMIN")
	require.NoError(t, err)

	users := store.NewUsers()
	c := cache.NewMemory(0)
	handler := New(Config{
		Users:    users,
		Cache:    c,
		Verifier: tokens,
		Health:   health.NewManager("user-service"),
		Logger:   zerolog.Nop(),
	})
	return &userFixture{handler: handler, users: users, cache: c, token: raw}
}

func (f *userFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func TestUserCRUD(t *testing.T) {
	f := newUserService(t)

	rec := f.do(t, http.MethodPost, "/api/users", map[string]string{
		"username": "alice", "role": "ADMIN",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	rec = f.do(t, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/users/1", map[string]string{
		"username": "alice", "role": "USER",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "USER", updated.Role)

	rec = f.do(t, http.MethodDelete, "/api/users/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReadsThroughCache(t *testing.T) {
	f := newUserService(t)
	u, err := f.users.Save(context.Background(), store.User{Username: "bob", Role: "USER"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The first read populated the cache; a direct store delete is now
	// invisible until the entry is invalidated.
	require.NoError(t, f.users.Delete(context.Background(), u.ID))
	rec = f.do(t, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, f.cache.Stats().Hits, int64(1))
}

func TestCreateWritesThroughCache(t *testing.T) {
	f := newUserService(t)

	rec := f.do(t, http.MethodPost, "/api/users", map[string]string{"username": "carol"})
	require.Equal(t, http.StatusCreated, rec.Code)

	_, ok := f.cache.Get("user:1")
	assert.True(t, ok)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	f := newUserService(t)
	_, err := f.users.Save(context.Background(), store.User{Username: "dave"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := f.cache.Get("user:1")
	require.True(t, ok)

	rec = f.do(t, http.MethodDelete, "/api/users/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, ok = f.cache.Get("user:1")
	assert.False(t, ok)
}

func TestListBypassesCache(t *testing.T) {
	f := newUserService(t)

	rec := f.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	// A record created directly in the store shows up immediately.
	_, err := f.users.Save(context.Background(), store.User{Username: "erin"})
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "erin", listed[0].Username)
}

func TestUserEndpointsRequireToken(t *testing.T) {
	f := newUserService(t)

	r := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetRejectsBadID(t *testing.T) {
	f := newUserService(t)
	rec := f.do(t, http.MethodGet, "/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
