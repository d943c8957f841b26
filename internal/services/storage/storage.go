// Package storage provides transparent encrypted/unencrypted access to the data directory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"
)

const (
	// ageHeader is the prefix of Age-encrypted files
	ageHeader = "age-encryption.org"

	// markerFile indicates encryption is enabled
	markerFile = ".encrypted"

	// verifyFile is used to validate the passphrase
	verifyFile = ".encryption-verify"

	// verifyMagic is the expected content in the verify file
	verifyMagic = `{"magic":"cashflow-encryption-verify","version":1}`

	// MinPassphraseLength is enforced when encryption is enabled
	MinPassphraseLength = 8
)

var (
	// ErrLocked is returned when an encrypted file is read before Unlock
	ErrLocked = errors.New("storage is encrypted and locked")
	// ErrIncorrectPassphrase is returned when the verify file cannot be decrypted
	ErrIncorrectPassphrase = errors.New("incorrect passphrase")
)

// Storage reads and writes named documents in a base directory, encrypting them with
// an age scrypt passphrase when encryption is enabled.
type Storage struct {
	baseDir   string
	encrypted bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	mu        sync.RWMutex
}

// New creates a Storage for baseDir, creating the directory if needed
func New(baseDir string) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{baseDir: baseDir}
	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.encrypted = true
	}
	return s, nil
}

// BaseDir returns the base directory
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Path returns the absolute path of a document name
func (s *Storage) Path(name string) string {
	return filepath.Join(s.baseDir, name)
}

// IsEncrypted returns true if the data directory is encrypted
func (s *Storage) IsEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encrypted
}

// IsUnlocked returns true if the data can be read (unencrypted, or unlocked)
func (s *Storage) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.encrypted || s.identity != nil
}

// Unlock verifies the passphrase and keeps the derived keys in memory
func (s *Storage) Unlock(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return nil
	}

	identity, recipient, err := s.verify(passphrase)
	if err != nil {
		return err
	}

	s.identity = identity
	s.recipient = recipient
	return nil
}

// Lock clears the encryption keys from memory
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

// Exists reports whether the named document is present
func (s *Storage) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// ReadFile reads a document, decrypting it if needed. A missing document returns an
// error satisfying errors.Is(err, os.ErrNotExist).
func (s *Storage) ReadFile(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}

	if isAgeEncrypted(data) {
		if s.identity == nil {
			return nil, fmt.Errorf("read %s: %w", name, ErrLocked)
		}
		decrypted, err := decryptData(data, s.identity)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", name, err)
		}
		return decrypted, nil
	}

	return data, nil
}

// WriteFile writes a document atomically, encrypting it when encryption is enabled
func (s *Storage) WriteFile(name string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.encrypted {
		if s.recipient == nil {
			return fmt.Errorf("write %s: %w", name, ErrLocked)
		}
		encrypted, err := encryptData(data, s.recipient)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", name, err)
		}
		data = encrypted
	}

	return atomicWrite(s.Path(name), data)
}

// Remove deletes a document
func (s *Storage) Remove(name string) error {
	return os.Remove(s.Path(name))
}

// verify derives the age keys for passphrase and checks them against the verify file
func (s *Storage) verify(passphrase string) (*age.ScryptIdentity, *age.ScryptRecipient, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create identity: %w", err)
	}

	encrypted, err := os.ReadFile(filepath.Join(s.baseDir, verifyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read verification file: %w", err)
	}

	decrypted, err := decryptData(encrypted, identity)
	if err != nil || string(decrypted) != verifyMagic {
		return nil, nil, ErrIncorrectPassphrase
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create recipient: %w", err)
	}
	return identity, recipient, nil
}

// atomicWrite writes data to a temp file and renames it over path
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// isAgeEncrypted checks if data starts with the Age encryption header
func isAgeEncrypted(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}
