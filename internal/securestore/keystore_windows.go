//go:build windows

package securestore

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DPAPIKeyStore keeps the master key encrypted with the Windows Data Protection
// API, bound to the current user's logon credentials.
type DPAPIKeyStore struct {
	path string
}

// NewKeyStore returns the platform key store for path.
func NewKeyStore(path string) KeyStore {
	return &DPAPIKeyStore{path: path}
}

// Store protects key with DPAPI and writes the blob to disk.
func (d *DPAPIKeyStore) Store(key []byte) error {
	blob, err := dpapiProtect(key)
	if err != nil {
		return fmt.Errorf("DPAPI protect: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := atomicWriteFile(d.path, blob, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// Retrieve reads and unprotects the key.
func (d *DPAPIKeyStore) Retrieve() ([]byte, error) {
	blob, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := dpapiUnprotect(blob)
	if err != nil {
		return nil, fmt.Errorf("DPAPI unprotect: %w", err)
	}
	return key, nil
}

// Delete removes the protected key file.
func (d *DPAPIKeyStore) Delete() error {
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete key file: %w", err)
	}
	return nil
}

// Exists reports whether the key file is present.
func (d *DPAPIKeyStore) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

func dpapiProtect(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	in := windows.DataBlob{Size: uint32(len(data)), Data: &data[0]}
	var out windows.DataBlob
	if err := windows.CryptProtectData(&in, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out); err != nil {
		return nil, err
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data)))

	result := make([]byte, out.Size)
	copy(result, unsafe.Slice(out.Data, out.Size))
	return result, nil
}

func dpapiUnprotect(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	in := windows.DataBlob{Size: uint32(len(data)), Data: &data[0]}
	var out windows.DataBlob
	if err := windows.CryptUnprotectData(&in, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out); err != nil {
		return nil, err
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data)))

	result := make([]byte, out.Size)
	copy(result, unsafe.Slice(out.Data, out.Size))
	return result, nil
}
