// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_CRUD(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()

	saved, err := users.Save(ctx, User{Username: "alice", Role: "ADMIN"})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	got, err := users.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	byName, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, saved, byName)

	saved.Role = "USER"
	updated, err := users.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, "USER", updated.Role)

	require.NoError(t, users.Delete(ctx, saved.ID))
	_, err = users.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrders_ListOrdering(t *testing.T) {
	ctx := context.Background()
	orders := NewOrders()

	for _, name := range []string{"laptop", "phone", "desk"} {
		_, err := orders.Save(ctx, Order{ProductName: name, Quantity: 1, Price: 10})
		require.NoError(t, err)
	}

	list, err := orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"laptop", "phone", "desk"},
		[]string{list[0].ProductName, list[1].ProductName, list[2].ProductName})
}

func TestCredentials_CreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentials(BcryptEncoder{})

	require.NoError(t, creds.Create(ctx, "alice", "s3cret", "ADMIN"))

	role, err := creds.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", role)

	_, err = creds.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = creds.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestCredentials_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentials(BcryptEncoder{})

	require.NoError(t, creds.Create(ctx, "alice", "a", "USER"))
	assert.ErrorIs(t, creds.Create(ctx, "alice", "b", "USER"), ErrUsernameTaken)
}
