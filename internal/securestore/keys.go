package securestore

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations follows the OWASP 2023 recommendation for PBKDF2-SHA-256.
const PBKDF2Iterations = 600000

// deviceKeyContext is the BLAKE3 derive-key context string. Changing it
// invalidates every existing store.
const deviceKeyContext = "signet 2026-01 session store aes-256-gcm key"

// KeySource derives the store's AES-256 key for a given salt.
type KeySource interface {
	DeriveKey(salt []byte) ([]byte, error)
}

// PassphraseKey derives the key from a user passphrase with PBKDF2-SHA-256.
type PassphraseKey struct {
	Passphrase string
	// Iterations defaults to PBKDF2Iterations when zero.
	Iterations int
}

// DeriveKey implements KeySource.
func (p PassphraseKey) DeriveKey(salt []byte) ([]byte, error) {
	if p.Passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	iter := p.Iterations
	if iter <= 0 {
		iter = PBKDF2Iterations
	}
	return pbkdf2.Key([]byte(p.Passphrase), salt, iter, keySize, sha256.New), nil
}

// DeviceKey derives the key from a random master key held by a KeyStore.
// The master key is generated on first use.
type DeviceKey struct {
	Store KeyStore
}

// DeriveKey implements KeySource.
func (d DeviceKey) DeriveKey(salt []byte) ([]byte, error) {
	master, err := d.master()
	if err != nil {
		return nil, err
	}
	defer zero(master)

	material := make([]byte, 0, len(master)+len(salt))
	material = append(material, master...)
	material = append(material, salt...)
	defer zero(material)

	out := make([]byte, keySize)
	blake3.DeriveKey(deviceKeyContext, material, out)
	return out, nil
}

func (d DeviceKey) master() ([]byte, error) {
	key, err := d.Store.Retrieve()
	if err == nil {
		if len(key) != keySize {
			zero(key)
			return nil, fmt.Errorf("%w: master key has length %d", ErrUnreadable, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	if err := d.Store.Store(key); err != nil {
		zero(key)
		return nil, fmt.Errorf("store master key: %w", err)
	}
	return key, nil
}
