// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package cipher encrypts login credentials with the RSA public key the
// authentication service hands out for each login attempt.
package cipher

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"io"
	"math/big"
	"strings"

	"github.com/samber/oops"
)

// PublicKey is the server-issued key material for one login attempt.
// Timestamp is kept exactly as received: the server rejects the credentials
// unless it is echoed back unchanged.
type PublicKey struct {
	Modulus   *big.Int
	Exponent  int
	Timestamp string
}

// ParsePublicKey builds a PublicKey from the hex modulus, hex exponent and
// timestamp fields of the key response.
func ParsePublicKey(modulusHex, exponentHex, timestamp string) (PublicKey, error) {
	if modulusHex == "" || exponentHex == "" || strings.TrimSpace(timestamp) == "" {
		return PublicKey{}, oops.Code("CIPHER_KEY_INCOMPLETE").
			With("has_modulus", modulusHex != "").
			With("has_exponent", exponentHex != "").
			With("has_timestamp", timestamp != "").
			Errorf("public key response is missing modulus, exponent or timestamp")
	}

	modulus, ok := new(big.Int).SetString(modulusHex, 16)
	if !ok || modulus.Sign() <= 0 {
		return PublicKey{}, oops.Code("CIPHER_KEY_MALFORMED").
			With("field", "modulus").
			Errorf("modulus is not a positive hex integer")
	}

	exponent, ok := new(big.Int).SetString(exponentHex, 16)
	if !ok || exponent.Sign() <= 0 || !exponent.IsInt64() || exponent.Int64() > 1<<31-1 {
		return PublicKey{}, oops.Code("CIPHER_KEY_MALFORMED").
			With("field", "exponent").
			Errorf("exponent is not a valid hex integer")
	}

	return PublicKey{
		Modulus:   modulus,
		Exponent:  int(exponent.Int64()),
		Timestamp: timestamp,
	}, nil
}

// Cipher encrypts a plaintext credential for submission.
type Cipher interface {
	// Encrypt returns the base64 encoded ciphertext of plaintext.
	Encrypt(plaintext string, key PublicKey) (string, error)
}

// RSACipher implements Cipher with RSA PKCS #1 v1.5, the scheme the login
// page itself uses.
type RSACipher struct {
	random io.Reader
}

// NewRSACipher creates an RSACipher reading randomness from crypto/rand.
func NewRSACipher() *RSACipher {
	return &RSACipher{random: rand.Reader}
}

// Encrypt encrypts plaintext with key and returns standard base64 output.
func (c *RSACipher) Encrypt(plaintext string, key PublicKey) (string, error) {
	if key.Modulus == nil {
		return "", oops.Code("CIPHER_KEY_INCOMPLETE").Errorf("public key has no modulus")
	}

	pub := &rsa.PublicKey{N: key.Modulus, E: key.Exponent}
	out, err := rsa.EncryptPKCS1v15(c.random, pub, []byte(plaintext))
	if err != nil {
		return "", oops.Code("CIPHER_ENCRYPT_FAILED").
			With("key_bits", key.Modulus.BitLen()).
			Wrap(err)
	}

	return base64.StdEncoding.EncodeToString(out), nil
}
