//go:build !windows

package securestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileKeyStore keeps the master key in a file readable only by its owner.
// Both the file (0600) and its directory (0700) are checked on every access;
// a key exposed to group or world is refused rather than used.
type FileKeyStore struct {
	path string
}

// NewKeyStore returns the platform key store for path.
func NewKeyStore(path string) KeyStore {
	return &FileKeyStore{path: path}
}

// Store writes key with mode 0600 inside a 0700 directory.
func (f *FileKeyStore) Store(key []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := checkPerm(dir); err != nil {
		return err
	}
	if err := atomicWriteFile(f.path, key, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err := checkPerm(f.path); err != nil {
		_ = os.Remove(f.path)
		return err
	}
	return nil
}

// Retrieve reads the key after verifying permissions.
func (f *FileKeyStore) Retrieve() ([]byte, error) {
	if err := checkPerm(filepath.Dir(f.path)); err != nil {
		return nil, err
	}
	if err := checkPerm(f.path); err != nil {
		return nil, err
	}
	key, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return key, nil
}

// Delete overwrites the key file with zeros, then removes it.
func (f *FileKeyStore) Delete() error {
	info, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat key file: %w", err)
	}

	if size := info.Size(); size > 0 {
		if fh, err := os.OpenFile(f.path, os.O_WRONLY, 0600); err == nil {
			_, _ = fh.Write(make([]byte, size))
			_ = fh.Sync()
			_ = fh.Close()
		}
	}

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete key file: %w", err)
	}
	return nil
}

// Exists reports whether the key file is present.
func (f *FileKeyStore) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// checkPerm rejects paths with any group or world permission bits.
// A missing path is reported with an error wrapping os.ErrNotExist.
func checkPerm(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("%s has insecure permissions %04o (fix with: chmod %s %s)",
			path, mode, map[bool]string{true: "700", false: "600"}[info.IsDir()], path)
	}
	return nil
}
