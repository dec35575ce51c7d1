// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package snapshot persists a logged in session between CLI runs.
//
// A snapshot is a YAML document. With a passphrase it is sealed with
// ChaCha20-Poly1305 under a key derived by argon2id, and the file holds
//
//	magic | salt (16) | nonce (12) | ciphertext
//
// Without a passphrase the YAML is written as is.
package snapshot

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v3"

	"github.com/steamfront/steamfront/internal/session"
	"github.com/steamfront/steamfront/internal/transport"
)

// CurrentVersion is the document version written by Save.
const CurrentVersion = 1

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	saltLen       = 16
	keyLen        = chacha20poly1305.KeySize
)

var magic = []byte("STFSNAP1")

// Document is the persisted form of a session.
type Document struct {
	Version      int                      `yaml:"version"`
	Username     string                   `yaml:"username"`
	SteamID      uint64                   `yaml:"steam_id"`
	RefreshToken string                   `yaml:"refresh_token,omitempty"`
	SavedAt      time.Time                `yaml:"saved_at"`
	Cookies      []transport.CookieRecord `yaml:"cookies"`
}

// Capture builds a document from a session and the store holding its
// cookies.
func Capture(s *session.Session, store session.CookieStore) Document {
	return Document{
		Version:      CurrentVersion,
		Username:     s.Username,
		SteamID:      s.SteamID(),
		RefreshToken: s.RefreshToken(),
		SavedAt:      time.Now().UTC(),
		Cookies:      store.Export(),
	}
}

// SessionOptions returns the session options that restore the document's
// identity and tokens.
func (d Document) SessionOptions() []session.Option {
	var opts []session.Option
	if d.SteamID != 0 {
		opts = append(opts, session.WithSteamID(d.SteamID))
	}
	if d.RefreshToken != "" {
		opts = append(opts, session.WithRefreshToken(d.RefreshToken))
	}
	return opts
}

// Save writes doc to path, encrypted when passphrase is non-empty. The file
// is replaced atomically and readable only by its owner.
func Save(path, passphrase string, doc Document) error {
	if doc.Version == 0 {
		doc.Version = CurrentVersion
	}
	plain, err := yaml.Marshal(doc)
	if err != nil {
		return oops.Code("SNAPSHOT_ENCODE_FAILED").With("path", path).Wrap(err)
	}

	data := plain
	if passphrase != "" {
		data, err = seal(passphrase, plain)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return oops.Code("SNAPSHOT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return oops.Code("SNAPSHOT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best effort after rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code("SNAPSHOT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return oops.Code("SNAPSHOT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("SNAPSHOT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return oops.Code("SNAPSHOT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Load reads the document at path. Sealed files need the passphrase they
// were saved with. A missing file fails with an error matching
// fs.ErrNotExist.
func Load(path, passphrase string) (Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		code := "SNAPSHOT_READ_FAILED"
		if errors.Is(err, fs.ErrNotExist) {
			code = "SNAPSHOT_NOT_FOUND"
		}
		return Document{}, oops.Code(code).With("path", path).Wrap(err)
	}

	if bytes.HasPrefix(data, magic) {
		if passphrase == "" {
			return Document{}, oops.Code("SNAPSHOT_PASSPHRASE_REQUIRED").With("path", path).
				Errorf("snapshot is encrypted")
		}
		data, err = open(passphrase, data)
		if err != nil {
			return Document{}, err
		}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, oops.Code("SNAPSHOT_DECODE_FAILED").With("path", path).Wrap(err)
	}
	if doc.Version > CurrentVersion {
		return Document{}, oops.Code("SNAPSHOT_VERSION_UNSUPPORTED").With("version", doc.Version).
			Errorf("snapshot version %d is newer than %d", doc.Version, CurrentVersion)
	}
	return doc, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, keyLen)
}

func seal(passphrase string, plain []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("SNAPSHOT_SALT_FAILED").Wrap(err)
	}
	aead, err := chacha20poly1305.New(deriveKey(passphrase, salt))
	if err != nil {
		return nil, oops.Code("SNAPSHOT_ENCRYPT_FAILED").Wrap(err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, oops.Code("SNAPSHOT_ENCRYPT_FAILED").Wrap(err)
	}

	out := make([]byte, 0, len(magic)+saltLen+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, magic), nil
}

func open(passphrase string, data []byte) ([]byte, error) {
	body := data[len(magic):]
	if len(body) < saltLen+chacha20poly1305.NonceSize {
		return nil, oops.Code("SNAPSHOT_DECRYPT_FAILED").Errorf("snapshot is truncated")
	}
	salt := body[:saltLen]
	nonce := body[saltLen : saltLen+chacha20poly1305.NonceSize]
	ciphertext := body[saltLen+chacha20poly1305.NonceSize:]

	aead, err := chacha20poly1305.New(deriveKey(passphrase, salt))
	if err != nil {
		return nil, oops.Code("SNAPSHOT_DECRYPT_FAILED").Wrap(err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, magic)
	if err != nil {
		return nil, oops.Code("SNAPSHOT_DECRYPT_FAILED").Errorf("wrong passphrase or corrupted snapshot")
	}
	return plain, nil
}
