package securestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name master keys are filed under in the OS
// credential store.
const KeyringService = "signet"

// KeyringStore keeps the master key in the OS credential store: the macOS
// Keychain, the Secret Service on Linux or the Windows Credential Manager.
// The key is stored base64-encoded since credential stores hold strings.
type KeyringStore struct {
	Service string
	User    string
}

// NewKeyringStore returns a KeyringStore for the store directory dir.
// Each directory gets its own entry.
func NewKeyringStore(dir string) *KeyringStore {
	return &KeyringStore{Service: KeyringService, User: dir}
}

// Store implements KeyStore.
func (k *KeyringStore) Store(key []byte) error {
	if err := keyring.Set(k.Service, k.User, base64.StdEncoding.EncodeToString(key)); err != nil {
		return fmt.Errorf("write keyring entry: %w", err)
	}
	return nil
}

// Retrieve implements KeyStore. A missing entry wraps os.ErrNotExist.
func (k *KeyringStore) Retrieve() ([]byte, error) {
	encoded, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keyring entry %s/%s: %w", k.Service, k.User, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring entry: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: keyring entry is not base64", ErrUnreadable)
	}
	return key, nil
}

// Delete implements KeyStore. Deleting a missing entry is not an error.
func (k *KeyringStore) Delete() error {
	if err := keyring.Delete(k.Service, k.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring entry: %w", err)
	}
	return nil
}

// Exists implements KeyStore.
func (k *KeyringStore) Exists() bool {
	_, err := keyring.Get(k.Service, k.User)
	return err == nil
}

// Available reports whether the credential store answers at all. A missing
// entry counts as available; a locked or absent service does not.
func (k *KeyringStore) Available() error {
	_, err := keyring.Get(k.Service, k.User)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
