package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/signet/internal/errors"
	"github.com/felixgeelhaar/signet/internal/log"
	"github.com/felixgeelhaar/signet/internal/securestore"
)

// DefaultNonceTTL bounds how long a sign-in attempt may take.
const DefaultNonceTTL = 10 * time.Minute

const nonceBytes = 16

// nonceRecord is persisted as {"nonce": "...", "expiresAt": <epoch-ms>}.
type nonceRecord struct {
	Nonce     string `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"`
}

// NonceGuard binds one sign-in attempt to the ID token it produces.
//
// ID token signatures are not verified by default, so this binding is the
// main defense against code or token substitution. There is a single record
// slot: a newer Issue overwrites an older one and the older attempt then fails
// validation.
type NonceGuard struct {
	storage securestore.Storage
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger
}

// NewNonceGuard creates a guard over storage. ttl <= 0 means DefaultNonceTTL.
func NewNonceGuard(storage securestore.Storage, ttl time.Duration, now func() time.Time, logger *log.Logger) *NonceGuard {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &NonceGuard{storage: storage, ttl: ttl, now: now, logger: logger}
}

// Issue creates and stores a fresh nonce and returns it.
func (g *NonceGuard) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	data, err := json.Marshal(nonceRecord{
		Nonce:     nonce,
		ExpiresAt: g.now().Add(g.ttl).UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	if err := g.storage.Set(ctx, KeyNonce, string(data)); err != nil {
		return "", errors.NewStoreError("nonce write", err)
	}
	return nonce, nil
}

// Validate checks the "nonce" claim against the stored record. It fails
// closed: a missing, unreadable or expired record is a failure whatever the
// claims say.
func (g *NonceGuard) Validate(ctx context.Context, claims Claims) error {
	raw, err := g.storage.Get(ctx, KeyNonce)
	if stderrors.Is(err, securestore.ErrNotFound) {
		return errors.NewNonceValidationError("no sign-in attempt is pending")
	}
	if err != nil {
		g.logger.WithError(err).Warn("nonce record unreadable")
		return errors.NewNonceValidationError("pending nonce could not be read")
	}

	var rec nonceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Nonce == "" {
		return errors.NewNonceValidationError("pending nonce is malformed")
	}
	if g.now().UnixMilli() >= rec.ExpiresAt {
		g.Discard(ctx)
		return errors.NewNonceValidationError("sign-in attempt expired")
	}

	got, ok := claims.String(ClaimNonce)
	if !ok {
		return errors.NewNonceValidationError("ID token has no nonce")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(rec.Nonce)) != 1 {
		return errors.NewNonceValidationError("nonce mismatch")
	}
	return nil
}

// Discard deletes the stored record. It never fails; storage errors are logged.
func (g *NonceGuard) Discard(ctx context.Context) {
	if err := g.storage.Delete(ctx, KeyNonce); err != nil {
		g.logger.WithError(err).Warn("failed to discard nonce record")
	}
}
