package securestore

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	envelopeVersion = 1
	saltSize        = 32
	keySize         = 32
)

// envelope is the on-disk layout. Entries hold base64(nonce|ciphertext|tag).
type envelope struct {
	Version int               `json:"version"`
	Salt    string            `json:"salt"`
	Entries map[string]string `json:"entries"`
}

// FileStore keeps every entry in one encrypted envelope file.
//
// The entry key is bound into each ciphertext as additional data, so an entry
// copied under another key fails to open instead of silently moving.
type FileStore struct {
	mu   sync.Mutex
	path string
	keys KeySource

	// cached cipher for salt
	salt []byte
	aead cipher.AEAD
}

// NewFileStore creates a store backed by the file at path.
// The file and its directory are created on first Set.
func NewFileStore(path string, keys KeySource) *FileStore {
	return &FileStore{path: path, keys: keys}
}

// Path returns the envelope file location.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the decrypted value stored under key.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return "", err
	}
	if env == nil {
		return "", ErrNotFound
	}
	sealed, ok := env.Entries[key]
	if !ok {
		return "", ErrNotFound
	}

	aead, err := s.cipherFor(env)
	if err != nil {
		return "", err
	}
	plaintext, err := open(aead, key, sealed)
	if err != nil {
		return "", fmt.Errorf("%w: entry %q: %v", ErrUnreadable, key, err)
	}
	return string(plaintext), nil
}

// Set encrypts value and stores it under key, replacing any previous value.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if errors.Is(err, ErrUnreadable) {
		// A corrupt envelope cannot be patched; start over.
		env = nil
	} else if err != nil {
		return err
	}
	if env == nil {
		if env, err = newEnvelope(); err != nil {
			return err
		}
	}

	aead, err := s.cipherFor(env)
	if err != nil {
		return err
	}
	sealed, err := seal(aead, key, []byte(value))
	if err != nil {
		return err
	}
	env.Entries[key] = sealed
	return s.save(env)
}

// Delete removes key. The file is removed once no entries remain.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if errors.Is(err, ErrUnreadable) {
		return s.remove()
	}
	if err != nil {
		return err
	}
	if env == nil {
		return nil
	}
	if _, ok := env.Entries[key]; !ok {
		return nil
	}
	delete(env.Entries, key)
	if len(env.Entries) == 0 {
		return s.remove()
	}
	return s.save(env)
}

// load reads the envelope. A missing file yields (nil, nil).
func (s *FileStore) load() (*envelope, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", ErrUnreadable, env.Version)
	}
	if env.Entries == nil {
		env.Entries = make(map[string]string)
	}
	return &env, nil
}

func (s *FileStore) save(env *envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return atomicWriteFile(s.path, data, 0600)
}

func (s *FileStore) remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	s.salt, s.aead = nil, nil
	return nil
}

// cipherFor returns the AEAD for the envelope's salt, deriving the key once per salt.
func (s *FileStore) cipherFor(env *envelope) (cipher.AEAD, error) {
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, fmt.Errorf("%w: invalid salt", ErrUnreadable)
	}
	if s.aead != nil && bytes.Equal(s.salt, salt) {
		return s.aead, nil
	}

	key, err := s.keys.DeriveKey(salt)
	if err != nil {
		return nil, fmt.Errorf("derive store key: %w", err)
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	s.salt, s.aead = salt, aead
	return aead, nil
}

func newEnvelope() (*envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return &envelope{
		Version: envelopeVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Entries: make(map[string]string),
	}, nil
}

func seal(aead cipher.AEAD, key string, plaintext []byte) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, plaintext, []byte(key))), nil
}

func open(aead cipher.AEAD, key, sealed string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, []byte(key))
}

// atomicWriteFile writes to a sibling temp file, syncs, then renames over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
