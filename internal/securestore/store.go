// Package securestore provides device-level secret storage for session material.
//
// Values are sealed with AES-256-GCM before they touch disk. The sealing key is
// either derived from a master key held by the OS credential store or from a
// passphrase. When no credential store answers, the master key falls back to
// DPAPI on Windows and a permission-checked key file elsewhere. There is no
// plaintext backend besides Memory, which never leaves the process.
package securestore

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Get when no value is stored under the key.
	ErrNotFound = errors.New("securestore: key not found")

	// ErrUnreadable is returned when stored data exists but cannot be opened:
	// a corrupt envelope, a tampered entry, or a key that no longer matches.
	ErrUnreadable = errors.New("securestore: stored data unreadable")
)

// Storage is a string key/value store for secrets.
//
// Set always fully overwrites and Delete of a missing key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Storage. Nothing is persisted.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
