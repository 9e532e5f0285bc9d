package securestore

import (
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/signet/internal/log"
)

// KeyStore holds the master key in operating system protected storage.
//
// Retrieve returns an error wrapping os.ErrNotExist when no key is stored.
type KeyStore interface {
	Store(key []byte) error
	Retrieve() ([]byte, error)
	Delete() error
	Exists() bool
}

// MasterKeyFile is the key file name inside the store directory.
const MasterKeyFile = "master.key"

// SessionFile is the envelope file name inside the store directory.
const SessionFile = "session.enc"

// DeviceKeyStore picks the key store for dir. The OS credential store is
// used when it answers; otherwise the platform key file under dir is.
// A key file left by an earlier run is moved into the credential store.
func DeviceKeyStore(dir string, logger *log.Logger) KeyStore {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	file := NewKeyStore(filepath.Join(dir, MasterKeyFile))

	ring := NewKeyringStore(dir)
	if err := ring.Available(); err != nil {
		logger.WithError(err).Warn("OS credential store unavailable; using the key file fallback",
			"path", filepath.Join(dir, MasterKeyFile))
		return file
	}

	if !ring.Exists() && file.Exists() {
		if err := moveKey(file, ring); err != nil {
			logger.WithError(err).Warn("could not move master key into the OS credential store; using the key file")
			return file
		}
		logger.Info("moved master key into the OS credential store")
	}
	return ring
}

func moveKey(from, to KeyStore) error {
	key, err := from.Retrieve()
	if err != nil {
		return err
	}
	defer zero(key)
	if len(key) != keySize {
		return fmt.Errorf("%w: master key has length %d", ErrUnreadable, len(key))
	}
	if err := to.Store(key); err != nil {
		return err
	}
	return from.Delete()
}

// Open builds the default FileStore in dir. A non-empty passphrase selects
// PBKDF2 key derivation and keys is ignored; otherwise keys holds the
// device master key.
func Open(dir, passphrase string, keys KeyStore) *FileStore {
	var source KeySource
	if passphrase != "" {
		source = PassphraseKey{Passphrase: passphrase}
	} else {
		source = DeviceKey{Store: keys}
	}
	return NewFileStore(filepath.Join(dir, SessionFile), source)
}
