// SPDX-License-Identifier: MIT

package ordersvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermesh/ordermesh/internal/events"
	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/lock"
	"github.com/ordermesh/ordermesh/internal/store"
	"github.com/ordermesh/ordermesh/internal/token"
)

type orderFixture struct {
	handler http.Handler
	orders  store.Orders
	broker  *events.MemBroker
	redis   *miniredis.Miniredis
	token   string
	users   []store.User
	userErr error
}

func newOrderService(t *testing.T) *orderFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	priv, pub, err := token.GenerateEphemeralKeys()
	require.NoError(t, err)
	tokens := token.New(priv, pub)
	raw, err := tokens.Issue("tester", "USER")
	require.NoError(t, err)

	f := &orderFixture{
		orders: store.NewOrders(),
		broker: events.NewMemBroker(),
		redis:  mr,
		token:  raw,
		users:  []store.User{{ID: 1, Username: "alice", Role: "USER"}},
	}
	f.handler = New(Config{
		Orders:  f.orders,
		Locks:   lock.New(client, zerolog.Nop()),
		LockTTL: 10 * time.Second,
		FetchUsers: func(ctx context.Context, bearer string) ([]store.User, error) {
			return f.users, f.userErr
		},
		Producer: f.broker.Publisher("orders-topic"),
		Verifier: tokens,
		Health:   health.NewManager("order-service"),
		Logger:   zerolog.Nop(),
	})
	return f
}

func (f *orderFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func TestCreateOrder(t *testing.T) {
	f := newOrderService(t)

	rec := f.do(t, http.MethodPost, "/api/orders", map[string]any{
		"productName": "laptop", "quantity": 2, "price": 999.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var o store.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "laptop", o.ProductName)
	assert.Equal(t, 2, o.Quantity)
	assert.NotZero(t, o.ID)
}

func TestCreateOrderDuplicateRejectedWithinTTL(t *testing.T) {
	f := newOrderService(t)
	body := map[string]any{"productName": "laptop", "quantity": 1, "price": 10.0}

	rec := f.do(t, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The lock releases by expiry only.
	f.redis.FastForward(11 * time.Second)
	rec = f.do(t, http.MethodPost, "/api/orders", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateOrderDistinctProductsDoNotContend(t *testing.T) {
	f := newOrderService(t)

	rec := f.do(t, http.MethodPost, "/api/orders", map[string]any{"productName": "laptop", "quantity": 1, "price": 1.0})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/orders", map[string]any{"productName": "phone", "quantity": 1, "price": 1.0})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateOrderNoUsersAvailable(t *testing.T) {
	f := newOrderService(t)
	f.users = nil

	rec := f.do(t, http.MethodPost, "/api/orders", map[string]any{"productName": "laptop", "quantity": 1, "price": 1.0})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no users available")
}

func TestCreateOrderUserFetchFailure(t *testing.T) {
	f := newOrderService(t)
	f.userErr = errors.New("connection refused")

	rec := f.do(t, http.MethodPost, "/api/orders", map[string]any{"productName": "laptop", "quantity": 1, "price": 1.0})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOrderCRUD(t *testing.T) {
	f := newOrderService(t)

	rec := f.do(t, http.MethodPost, "/api/orders", map[string]any{"productName": "laptop", "quantity": 1, "price": 5.0})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []store.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = f.do(t, http.MethodDelete, "/api/orders/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishAttachesBearerToken(t *testing.T) {
	f := newOrderService(t)

	rec := f.do(t, http.MethodPost, "/api/orders/kafka", map[string]any{
		"orderId": "O42", "userId": "U7", "amount": 12.5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := f.broker.Log("orders-topic")
	require.Len(t, msgs, 1)
	ev, err := events.UnmarshalOrderEvent(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "O42", ev.OrderID)
	assert.Equal(t, f.token, ev.Token)
	assert.NotEmpty(t, ev.EventID)
}

func TestPublishBatch(t *testing.T) {
	f := newOrderService(t)

	rec := f.do(t, http.MethodPost, "/api/orders/kafka/batch", []map[string]any{
		{"orderId": "O1", "userId": "U1", "amount": 1.0},
		{"orderId": "O2", "userId": "U1", "amount": 2.0},
		{"orderId": "O3", "userId": "U2", "amount": 3.0},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := f.broker.Log("orders-topic")
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		ev, err := events.UnmarshalOrderEvent(m.Value)
		require.NoError(t, err)
		assert.Equal(t, f.token, ev.Token)
	}
}

func TestPublishValidation(t *testing.T) {
	f := newOrderService(t)

	rec := f.do(t, http.MethodPost, "/api/orders/kafka", map[string]any{"userId": "U7"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders/kafka/batch", []map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrdersRequireToken(t *testing.T) {
	f := newOrderService(t)

	r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
