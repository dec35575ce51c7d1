// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package cipher_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steamfront/steamfront/internal/cipher"
	"github.com/steamfront/steamfront/pkg/errutil"
)

func TestParsePublicKey(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		key, err := cipher.ParsePublicKey("c5f3", "010001", "171234")
		require.NoError(t, err)
		assert.Equal(t, int64(0xc5f3), key.Modulus.Int64())
		assert.Equal(t, 65537, key.Exponent)
		assert.Equal(t, "171234", key.Timestamp)
	})

	tests := []struct {
		name      string
		modulus   string
		exponent  string
		timestamp string
		code      string
	}{
		{"missing modulus", "", "010001", "1", "CIPHER_KEY_INCOMPLETE"},
		{"missing exponent", "c5f3", "", "1", "CIPHER_KEY_INCOMPLETE"},
		{"missing timestamp", "c5f3", "010001", "", "CIPHER_KEY_INCOMPLETE"},
		{"non hex modulus", "zz", "010001", "1", "CIPHER_KEY_MALFORMED"},
		{"non hex exponent", "c5f3", "xyz", "1", "CIPHER_KEY_MALFORMED"},
		{"zero exponent", "c5f3", "0", "1", "CIPHER_KEY_MALFORMED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cipher.ParsePublicKey(tt.modulus, tt.exponent, tt.timestamp)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestRSACipher_EncryptRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := cipher.ParsePublicKey(
		priv.N.Text(16),
		fmt.Sprintf("%x", priv.E),
		"171234",
	)
	require.NoError(t, err)

	encoded, err := cipher.NewRSACipher().Encrypt("hunter2", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, raw, priv.Size())

	plain, err := rsa.DecryptPKCS1v15(rand.Reader, priv, raw)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plain))
}

func TestRSACipher_EncryptIsRandomized(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key := cipher.PublicKey{Modulus: priv.N, Exponent: priv.E, Timestamp: "1"}

	c := cipher.NewRSACipher()
	first, err := c.Encrypt("hunter2", key)
	require.NoError(t, err)
	second, err := c.Encrypt("hunter2", key)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestRSACipher_EncryptWithoutModulus(t *testing.T) {
	_, err := cipher.NewRSACipher().Encrypt("hunter2", cipher.PublicKey{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CIPHER_KEY_INCOMPLETE")
}
