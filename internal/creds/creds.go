// Package creds stores the warehouse password. It prefers the OS
// keychain; on headless machines it falls back to an AES-GCM encrypted
// file under the config directory, keyed by a machine-derived secret.
// The password never appears in the config file.
package creds

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"layoffscrub/internal/common"
	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

const (
	keyringService   = "layoffscrub"
	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32 // AES-256
)

// Manager stores and retrieves secrets.
type Manager struct {
	useKeyring bool
	masterKey  []byte
	dir        string
}

// NewManager picks the backend for this machine: the OS keychain when
// one is reachable, otherwise the encrypted-file fallback.
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Cannot locate the home directory")
	}
	return newManager(filepath.Join(home, ".layoffscrub", "credentials"), isKeyringAvailable())
}

func newManager(dir string, useKeyring bool) (*Manager, error) {
	m := &Manager{useKeyring: useKeyring, dir: dir}
	if !m.useKeyring {
		key, err := m.loadMasterKey()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEncryptionFailed,
				"Failed to initialize the credential master key")
		}
		m.masterKey = key
	}
	return m, nil
}

// PasswordKey names the stored secret for a warehouse target, so
// several accounts can coexist side by side.
func PasswordKey(cfg models.Warehouse) string {
	return fmt.Sprintf("%s@%s", cfg.Username, cfg.Account)
}

// Set stores a secret under name.
func (m *Manager) Set(name, value string) error {
	if m.useKeyring {
		if err := keyring.Set(keyringService, name, value); err != nil {
			return errors.Wrap(err, errors.ErrCodeEncryptionFailed,
				"Failed to store the secret in the keychain")
		}
		return nil
	}
	return m.setEncrypted(name, value)
}

// Get retrieves a secret.
func (m *Manager) Get(name string) (string, error) {
	if m.useKeyring {
		value, err := keyring.Get(keyringService, name)
		if err != nil {
			if err == keyring.ErrNotFound {
				return "", notFound(name)
			}
			return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed,
				"Failed to read the secret from the keychain")
		}
		return value, nil
	}
	return m.getEncrypted(name)
}

// Delete removes a secret. Deleting a missing secret is not an error.
func (m *Manager) Delete(name string) error {
	if m.useKeyring {
		if err := keyring.Delete(keyringService, name); err != nil && err != keyring.ErrNotFound {
			return errors.Wrap(err, errors.ErrCodeEncryptionFailed,
				"Failed to delete the secret from the keychain")
		}
		return nil
	}
	path, err := m.secretPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to delete the secret file")
	}
	return nil
}

func notFound(name string) *errors.AppError {
	return errors.New(errors.ErrCodeCredentialNotFound, fmt.Sprintf("No secret stored for %s", name)).
		WithContext("name", name).
		WithSuggestions("Run 'layoffscrub setup' to store the warehouse password")
}

// Encrypted-file backend.

func (m *Manager) setEncrypted(name, value string) error {
	sealed, err := m.encrypt(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to encrypt the secret")
	}
	if err := os.MkdirAll(m.dir, common.DirPermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create the credentials directory")
	}
	path, err := m.secretPath(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(sealed), common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to write the secret file")
	}
	return nil
}

func (m *Manager) getEncrypted(name string) (string, error) {
	path, err := m.secretPath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is validated
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFound(name)
		}
		return "", errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to read the secret file")
	}
	value, err := m.decrypt(string(data))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to decrypt the secret").
			WithSuggestions("Run 'layoffscrub setup' to store the password again")
	}
	return value, nil
}

func (m *Manager) secretPath(name string) (string, error) {
	path := filepath.Join(m.dir, sanitizeName(name)+".cred")
	validated, err := common.ValidatePath(path, m.dir)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeFileOperation,
			fmt.Sprintf("Invalid secret name %q", name))
	}
	return validated, nil
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '@', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// loadMasterKey reads the persisted fallback key or mints a new one
// derived from machine identity via PBKDF2.
func (m *Manager) loadMasterKey() ([]byte, error) {
	keyPath := filepath.Join(m.dir, ".master")

	data, err := os.ReadFile(keyPath) // #nosec G304 - fixed location under the config dir
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("master key file is corrupt")
		}
		return data[saltSize:], nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(m.dir, common.DirPermissionSecure); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}

	return key, nil
}

func (m *Manager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (m *Manager) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func isKeyringAvailable() bool {
	if os.Getenv("LAYOFFSCRUB_USE_KEYCHAIN") == "false" {
		return false
	}
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		// A secret-service backend needs a desktop session.
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return true
		}
	}
	return false
}

func machineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)))
	return base64.StdEncoding.EncodeToString(sum[:])
}
