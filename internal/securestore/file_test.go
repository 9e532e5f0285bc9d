package securestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastKey keeps PBKDF2 cheap in tests.
func fastKey(pass string) KeySource {
	return PassphraseKey{Passphrase: pass, Iterations: 1000}
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "store", SessionFile), fastKey("test-passphrase"))
}

func TestFileStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	require.NoError(t, store.Set(ctx, "auth.access_token", "access-123"))
	require.NoError(t, store.Set(ctx, "auth.id_token", "id-456"))

	v, err := store.Get(ctx, "auth.access_token")
	require.NoError(t, err)
	assert.Equal(t, "access-123", v)

	v, err = store.Get(ctx, "auth.id_token")
	require.NoError(t, err)
	assert.Equal(t, "id-456", v)
}

func TestFileStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "a", "1"))
	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ValuesNotInPlaintext(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	require.NoError(t, store.Set(ctx, "auth.access_token", "super-secret-token"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret-token")

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), SessionFile)

	require.NoError(t, NewFileStore(path, fastKey("pw")).Set(ctx, "k", "v"))

	v, err := NewFileStore(path, fastKey("pw")).Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = NewFileStore(path, fastKey("wrong")).Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestFileStore_EntrySubstitutionDetected(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	require.NoError(t, store.Set(ctx, "auth.access_token", "a"))
	require.NoError(t, store.Set(ctx, "auth.id_token", "b"))

	// Move the access token ciphertext under the ID token key.
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	env.Entries["auth.id_token"] = env.Entries["auth.access_token"]
	data, err = json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), data, 0600))

	_, err = store.Get(ctx, "auth.id_token")
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestFileStore_CorruptEnvelope(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0600))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnreadable)

	// Set starts over on a corrupt envelope.
	require.NoError(t, store.Set(ctx, "k", "fresh"))
	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestFileStore_DeleteRemovesFileWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	// Deleting from a store that was never written is fine.
	require.NoError(t, store.Delete(ctx, "missing"))

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))

	require.NoError(t, store.Delete(ctx, "a"))
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(store.Path())
	require.NoError(t, err, "file should remain while entries exist")

	require.NoError(t, store.Delete(ctx, "b"))
	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "file should be removed once empty")

	require.NoError(t, store.Delete(ctx, "b"))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", "v"))
	require.NoError(t, m.Set(ctx, "k", "v2"))
	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"))
	assert.Equal(t, 0, m.Len())
}
