// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken  = errors.New("username already exists")
	ErrBadCredentials = errors.New("invalid username or password")
)

// Encoder is the one-way credential encoder. Hashing is an external
// concern; this interface keeps the credential store agnostic of it.
type Encoder interface {
	Encode(raw string) (string, error)
	Matches(raw, encoded string) bool
}

// BcryptEncoder implements Encoder with bcrypt at default cost.
type BcryptEncoder struct{}

func (BcryptEncoder) Encode(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (BcryptEncoder) Matches(raw, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(raw)) == nil
}

type credential struct {
	hash string
	role string
}

// Credentials maps usernames to encoded passwords and roles.
type Credentials struct {
	mu      sync.RWMutex
	encoder Encoder
	byName  map[string]credential
}

// NewCredentials creates an empty credential store using the encoder.
func NewCredentials(encoder Encoder) *Credentials {
	return &Credentials{
		encoder: encoder,
		byName:  make(map[string]credential),
	}
}

// Create encodes and stores a new credential. Duplicate usernames are
// rejected with ErrUsernameTaken.
func (c *Credentials) Create(_ context.Context, username, rawPassword, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[username]; exists {
		return ErrUsernameTaken
	}
	hash, err := c.encoder.Encode(rawPassword)
	if err != nil {
		return err
	}
	c.byName[username] = credential{hash: hash, role: role}
	return nil
}

// Authenticate checks the password and returns the stored role. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (c *Credentials) Authenticate(_ context.Context, username, rawPassword string) (string, error) {
	c.mu.RLock()
	cred, ok := c.byName[username]
	c.mu.RUnlock()
	if !ok || !c.encoder.Matches(rawPassword, cred.hash) {
		return "", ErrBadCredentials
	}
	return cred.role, nil
}
