// SPDX-License-Identifier: MIT

// Package token issues and verifies RS256-signed bearer tokens carrying a
// subject and a single role claim. Tokens are stateless: there is no
// revocation list, expiry is the only end of life.
package token

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RolePrefix is prepended to role claims that lack it before a principal
// is constructed. Authorization checks downstream match on the prefixed
// form, so normalization must not be skipped.
const RolePrefix = "ROLE_"

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenMalformed = errors.New("malformed token")
	ErrNoPrivateKey   = errors.New("no private key configured")
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Authority returns the role claim with the role prefix guaranteed.
func (c Claims) Authority() string {
	if strings.HasPrefix(c.Role, RolePrefix) {
		return c.Role
	}
	return RolePrefix + c.Role
}

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service signs tokens with an RSA private key and verifies them with the
// matching public key. Verify-only deployments construct it without a
// private key.
type Service struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
	clock      clock
}

// Option configuration pattern
type Option func(*Service)

func WithClock(c clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// New creates a token service that can both issue and verify.
func New(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, opts ...Option) *Service {
	s := &Service{
		privateKey: privateKey,
		publicKey:  publicKey,
		ttl:        24 * time.Hour,
		clock:      realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewVerifier creates a verify-only token service.
func NewVerifier(publicKey *rsa.PublicKey, opts ...Option) *Service {
	return New(nil, publicKey, opts...)
}

type signedClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token for the given subject and role.
func (s *Service) Issue(subject, role string) (string, error) {
	if s.privateKey == nil {
		return "", ErrNoPrivateKey
	}
	now := s.clock.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, signedClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := tok.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
// All failures map onto the package sentinels; callers treat every one of
// them as "unauthenticated".
func (s *Service) Verify(raw string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &signedClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return Claims{}, classify(err)
	}

	// The jwt decoder ignores non-zero padding bits in the final base64
	// character, so a textually altered signature segment can decode to
	// the valid signature. Only the canonical encoding is accepted.
	sig := raw[strings.LastIndexByte(raw, '.')+1:]
	if _, err := base64.RawURLEncoding.Strict().DecodeString(sig); err != nil {
		return Claims{}, ErrTokenSignature
	}

	sc, ok := parsed.Claims.(*signedClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrTokenMalformed
	}

	claims := Claims{
		Subject: sc.Subject,
		Role:    sc.Role,
	}
	if sc.IssuedAt != nil {
		claims.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		claims.ExpiresAt = sc.ExpiresAt.Time
	} else {
		// Expiry is a required claim.
		return Claims{}, ErrTokenMalformed
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}
