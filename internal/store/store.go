// SPDX-License-Identifier: MIT

// Package store holds the keyed record stores the platform reads and
// writes atomically per call. Persistent storage is an external
// collaborator; the in-memory implementations here satisfy the same
// interfaces a durable backend would.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("record not found")

// User is a plain user record.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Order is a plain order record.
type Order struct {
	ID          int64   `json:"id"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Users is the user record store.
type Users interface {
	Get(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Save(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]User, error)
}

// Orders is the order record store.
type Orders interface {
	Get(ctx context.Context, id int64) (Order, error)
	Save(ctx context.Context, o Order) (Order, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Order, error)
}

// memUsers is a concurrency-safe in-memory Users implementation.
type memUsers struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
}

// NewUsers creates an empty in-memory user store.
func NewUsers() Users {
	return &memUsers{users: make(map[int64]User)}
}

func (s *memUsers) Get(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *memUsers) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *memUsers) Save(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.nextID++
		u.ID = s.nextID
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *memUsers) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memUsers) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memOrders is a concurrency-safe in-memory Orders implementation.
type memOrders struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]Order
}

// NewOrders creates an empty in-memory order store.
func NewOrders() Orders {
	return &memOrders{orders: make(map[int64]Order)}
}

func (s *memOrders) Get(_ context.Context, id int64) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *memOrders) Save(_ context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextID++
		o.ID = s.nextID
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *memOrders) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *memOrders) List(_ context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
