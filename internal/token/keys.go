// SPDX-License-Identifier: MIT

package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"regexp"
)

var pemMarker = regexp.MustCompile(`-----[A-Z ]+-----|\s`)

// keyBody extracts DER bytes from PEM material. Standard PEM blocks are
// decoded as-is; material with stripped or nonstandard markers falls back
// to base64-decoding the body with markers and whitespace removed.
func keyBody(raw []byte) ([]byte, error) {
	if block, _ := pem.Decode(raw); block != nil {
		return block.Bytes, nil
	}
	clean := pemMarker.ReplaceAllString(string(raw), "")
	der, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return der, nil
}

// ParsePrivateKeyPEM parses PKCS8 (preferred) or PKCS1 RSA private key material.
func ParsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	der, err := keyBody(raw)
	if err != nil {
		return nil, err
	}
	if keyAny, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		key, ok := keyAny.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// ParsePublicKeyPEM parses X.509/PKIX (preferred) or PKCS1 RSA public key material.
func ParsePublicKeyPEM(raw []byte) (*rsa.PublicKey, error) {
	der, err := keyBody(raw)
	if err != nil {
		return nil, err
	}
	if keyAny, err := x509.ParsePKIXPublicKey(der); err == nil {
		key, ok := keyAny.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not RSA")
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

// LoadPrivateKeyPEM reads and parses a private key file.
func LoadPrivateKeyPEM(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKeyPEM(raw)
}

// LoadPublicKeyPEM reads and parses a public key file.
func LoadPublicKeyPEM(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return ParsePublicKeyPEM(raw)
}

// GenerateEphemeralKeys creates an in-memory keypair for local/dev use.
// This exists to unblock startup when static keys are intentionally absent.
func GenerateEphemeralKeys() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	return key, &key.PublicKey, nil
}
