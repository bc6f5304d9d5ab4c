package filestore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/google/uuid"
)

// encryptedExt marks files written through an age recipient
const encryptedExt = ".age"

// Store keeps uploaded statements on local disk. With a passphrase set,
// files are age-encrypted at rest.
type Store struct {
	basePath  string
	recipient *age.ScryptRecipient
	identity  *age.ScryptIdentity
}

// New creates a new file store with the given base path. An empty
// passphrase stores files in the clear.
func New(basePath, passphrase string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create filestore directory: %w", err)
	}
	s := &Store{basePath: basePath}
	if passphrase == "" {
		return s, nil
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("create scrypt recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("create scrypt identity: %w", err)
	}
	s.recipient, s.identity = recipient, identity
	return s, nil
}

// SetWorkFactor lowers or raises the scrypt cost for new files
func (s *Store) SetWorkFactor(logN int) {
	if s.recipient != nil {
		s.recipient.SetWorkFactor(logN)
	}
}

// Encrypted reports whether new files are written encrypted
func (s *Store) Encrypted() bool { return s.recipient != nil }

// Save stores a file under a fresh uuid name and returns that name. The
// original extension is kept so the decoder can still pick a format.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + filepath.Ext(filename)
	if s.recipient != nil {
		name += encryptedExt
	}
	fullPath := filepath.Join(s.basePath, name)

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	var w io.WriteCloser = nopCloser{f}
	if s.recipient != nil {
		w, err = age.Encrypt(f, s.recipient)
		if err != nil {
			os.Remove(fullPath)
			return "", fmt.Errorf("encrypt file: %w", err)
		}
	}
	if _, err := io.Copy(w, r); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := w.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("finish file: %w", err)
	}
	return name, nil
}

// Read returns the plaintext content of a stored file
func (s *Store) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	if filepath.Ext(name) != encryptedExt {
		return data, nil
	}
	if s.identity == nil {
		return nil, fmt.Errorf("file %s is encrypted and no passphrase is configured", name)
	}
	r, err := age.Decrypt(bytes.NewReader(data), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt file: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt file: %w", err)
	}
	return plain, nil
}

// Delete removes the file at the given path
func (s *Store) Delete(name string) error {
	if name == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.basePath, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// OriginalExt is the extension the file had before encryption
func OriginalExt(name string) string {
	if filepath.Ext(name) == encryptedExt {
		name = name[:len(name)-len(encryptedExt)]
	}
	return filepath.Ext(name)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
