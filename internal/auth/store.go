package auth

import (
	"context"
	stderrors "errors"
	"math"
	"strconv"
	"time"

	"github.com/felixgeelhaar/signet/internal/errors"
	"github.com/felixgeelhaar/signet/internal/log"
	"github.com/felixgeelhaar/signet/internal/securestore"
)

// SessionStore persists a Session in secure storage.
//
// Only the access token, ID token and expiry are written. The three writes are
// sequential, not transactional; Load treats any missing key as no session,
// which masks a crash between writes.
type SessionStore struct {
	storage securestore.Storage
	mapper  *ClaimsMapper
	now     func() time.Time
	logger  *log.Logger
}

// NewSessionStore creates a store. mapper re-derives identity on every Load.
func NewSessionStore(storage securestore.Storage, mapper *ClaimsMapper, now func() time.Time, logger *log.Logger) *SessionStore {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if mapper == nil {
		mapper = NewClaimsMapper(logger)
	}
	return &SessionStore{storage: storage, mapper: mapper, now: now, logger: logger}
}

// Set overwrites the stored session.
func (s *SessionStore) Set(ctx context.Context, session *Session) error {
	writes := []struct{ key, value string }{
		{KeyAccessToken, session.AccessToken},
		{KeyIDToken, session.IDToken},
		{KeyExpiresAt, strconv.FormatInt(session.ExpiresAt.UnixMilli(), 10)},
	}
	for _, w := range writes {
		if err := s.storage.Set(ctx, w.key, w.value); err != nil {
			return errors.NewStoreError("session write", err)
		}
	}
	return nil
}

// Clear erases every session key. All deletions are attempted; the first error is returned.
func (s *SessionStore) Clear(ctx context.Context) error {
	var first error
	for _, key := range []string{KeyAccessToken, KeyIDToken, KeyExpiresAt} {
		if err := s.storage.Delete(ctx, key); err != nil && first == nil {
			first = errors.NewStoreError("session delete", err)
		}
	}
	return first
}

// Load returns the stored session, or nil when there is none or it expired.
// An expired or unreadable session is cleared. Only storage I/O failures are
// returned as errors.
func (s *SessionStore) Load(ctx context.Context) (*Session, error) {
	values := make(map[string]string, 3)
	for _, key := range []string{KeyAccessToken, KeyIDToken, KeyExpiresAt} {
		v, err := s.storage.Get(ctx, key)
		switch {
		case err == nil:
			values[key] = v
		case stderrors.Is(err, securestore.ErrNotFound):
			return nil, nil
		case stderrors.Is(err, securestore.ErrUnreadable):
			s.logger.WithError(err).Warn("stored session unreadable; clearing")
			return nil, s.Clear(ctx)
		default:
			return nil, errors.NewStoreError("session read", err)
		}
	}

	expiresAt, ok := parseEpochMillis(values[KeyExpiresAt])
	if !ok || !s.now().Before(expiresAt) {
		s.logger.Debug("stored session expired or has invalid expiry; clearing")
		return nil, s.Clear(ctx)
	}

	id := s.mapper.Map(DecodeClaims(values[KeyIDToken]))
	return &Session{
		UserID:         id.UserID,
		OrganizationID: id.OrganizationID,
		Roles:          id.Roles,
		AccessToken:    values[KeyAccessToken],
		IDToken:        values[KeyIDToken],
		ExpiresAt:      expiresAt,
	}, nil
}

// parseEpochMillis accepts any finite number of milliseconds.
func parseEpochMillis(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)), true
}
