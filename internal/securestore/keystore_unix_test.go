//go:build !windows

package securestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/felixgeelhaar/signet/internal/log"
)

func TestFileKeyStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "secure")
	ks := NewKeyStore(filepath.Join(dir, MasterKeyFile))

	assert.False(t, ks.Exists())
	_, err := ks.Retrieve()
	assert.True(t, errors.Is(err, os.ErrNotExist), "missing key should wrap os.ErrNotExist, got %v", err)

	key := []byte("0123456789abcdef0123456789abcdef")
	require.NoError(t, ks.Store(key))
	assert.True(t, ks.Exists())

	got, err := ks.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, key, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	require.NoError(t, ks.Delete())
	assert.False(t, ks.Exists())
	require.NoError(t, ks.Delete())
}

func TestFileKeyStore_RefusesInsecurePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "secure")
	path := filepath.Join(dir, MasterKeyFile)
	ks := NewKeyStore(path)
	require.NoError(t, ks.Store([]byte("0123456789abcdef0123456789abcdef")))

	require.NoError(t, os.Chmod(path, 0644))
	_, err := ks.Retrieve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")

	require.NoError(t, os.Chmod(path, 0600))
	require.NoError(t, os.Chmod(dir, 0755))
	_, err = ks.Retrieve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestDeviceKeyStore_FallsBackToKeyFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("secret service not running"))
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "secure")

	ks := DeviceKeyStore(dir, log.Discard())
	require.IsType(t, &FileKeyStore{}, ks)

	require.NoError(t, Open(dir, "", ks).Set(ctx, "auth.access_token", "tok"))

	v, err := Open(dir, "", DeviceKeyStore(dir, log.Discard())).Get(ctx, "auth.access_token")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	_, err = os.Stat(filepath.Join(dir, MasterKeyFile))
	assert.NoError(t, err)
}

func TestDeviceKeyStore_MovesKeyFileIntoKeyring(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "secure")

	keyring.MockInitWithError(errors.New("secret service not running"))
	require.NoError(t, Open(dir, "", DeviceKeyStore(dir, log.Discard())).Set(ctx, "auth.access_token", "tok"))

	keyring.MockInit()
	ks := DeviceKeyStore(dir, log.Discard())
	require.IsType(t, &KeyringStore{}, ks)
	assert.True(t, ks.Exists())

	_, err := os.Stat(filepath.Join(dir, MasterKeyFile))
	assert.True(t, errors.Is(err, os.ErrNotExist), "key file must be removed after the move")

	v, err := Open(dir, "", ks).Get(ctx, "auth.access_token")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}
