package auth

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/signet/internal/log"
	"github.com/felixgeelhaar/signet/internal/securestore"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func mintIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

func bufferLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(log.Config{Level: log.LevelDebug, Format: log.FormatText, Output: &buf}), &buf
}

// faultyStorage wraps Memory and fails selected operations.
type faultyStorage struct {
	*securestore.Memory
	getErr   map[string]error
	setErr   map[string]error

	// honorCancel makes Get and Set fail once ctx is done, like a real backend.
	honorCancel bool
}

func newFaultyStorage() *faultyStorage {
	return &faultyStorage{
		Memory: securestore.NewMemory(),
		getErr: map[string]error{},
		setErr: map[string]error{},
	}
}

func (s *faultyStorage) Get(ctx context.Context, key string) (string, error) {
	if s.honorCancel && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err := s.getErr[key]; err != nil {
		return "", err
	}
	return s.Memory.Get(ctx, key)
}

func (s *faultyStorage) Set(ctx context.Context, key, value string) error {
	if s.honorCancel && ctx.Err() != nil {
		return ctx.Err()
	}
	if err := s.setErr[key]; err != nil {
		return err
	}
	return s.Memory.Set(ctx, key, value)
}

// fakeAuthorizer stands in for the identity provider round trip.
type fakeAuthorizer struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req AuthorizationRequest) (*TokenSet, error)
}

func (a *fakeAuthorizer) Authorize(ctx context.Context, req AuthorizationRequest) (*TokenSet, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.fn(ctx, req)
}

func (a *fakeAuthorizer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
