package creds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoffscrub/pkg/errors"
	"layoffscrub/pkg/models"
)

func TestEncryptedFileBackend(t *testing.T) {
	dir := t.TempDir()

	t.Run("create manager", func(t *testing.T) {
		m, err := newManager(dir, false)
		require.NoError(t, err)
		assert.False(t, m.useKeyring)
		assert.NotNil(t, m.masterKey)
	})

	t.Run("set and get", func(t *testing.T) {
		m, err := newManager(dir, false)
		require.NoError(t, err)

		require.NoError(t, m.Set("loader@xy12345", "hunter2"))

		got, err := m.Get("loader@xy12345")
		require.NoError(t, err)
		assert.Equal(t, "hunter2", got)
	})

	t.Run("secret survives a new manager", func(t *testing.T) {
		m, err := newManager(dir, false)
		require.NoError(t, err)
		require.NoError(t, m.Set("persisted", "value"))

		again, err := newManager(dir, false)
		require.NoError(t, err)

		got, err := again.Get("persisted")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	})

	t.Run("secret file is not plaintext", func(t *testing.T) {
		m, err := newManager(dir, false)
		require.NoError(t, err)
		require.NoError(t, m.Set("opaque", "super-secret-password"))

		data, err := os.ReadFile(filepath.Join(dir, "opaque.cred"))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "super-secret-password")
	})

	t.Run("missing secret", func(t *testing.T) {
		m, err := newManager(dir, false)
		require.NoError(t, err)

		_, err = m.Get("nobody@nowhere")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeCredentialNotFound, errors.GetErrorCode(err))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		m, err := newManager(dir, false)
		require.NoError(t, err)

		require.NoError(t, m.Set("doomed", "x"))
		require.NoError(t, m.Delete("doomed"))
		require.NoError(t, m.Delete("doomed"))

		_, err = m.Get("doomed")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeCredentialNotFound, errors.GetErrorCode(err))
	})

	t.Run("tampered ciphertext fails", func(t *testing.T) {
		m, err := newManager(dir, false)
		require.NoError(t, err)
		require.NoError(t, m.Set("tampered", "original"))

		path := filepath.Join(dir, "tampered.cred")
		require.NoError(t, os.WriteFile(path, []byte("bm90IGEgcmVhbCBjaXBoZXJ0ZXh0"), 0o600))

		_, err = m.Get("tampered")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeEncryptionFailed, errors.GetErrorCode(err))
	})
}

func TestCorruptMasterKeyIsRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".master"), []byte("short"), 0o600))

	_, err := newManager(dir, false)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEncryptionFailed, errors.GetErrorCode(err))
}

func TestKeyringBackend(t *testing.T) {
	keyring.MockInit()

	m := &Manager{useKeyring: true}

	require.NoError(t, m.Set("loader@xy12345", "hunter2"))

	got, err := m.Get("loader@xy12345")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, m.Delete("loader@xy12345"))
	require.NoError(t, m.Delete("loader@xy12345"))

	_, err = m.Get("loader@xy12345")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCredentialNotFound, errors.GetErrorCode(err))
}

func TestPasswordKey(t *testing.T) {
	key := PasswordKey(models.Warehouse{Account: "xy12345.eu-west-1", Username: "loader"})
	assert.Equal(t, "loader@xy12345.eu-west-1", key)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"loader@xy12345.eu-west-1", "loader@xy12345.eu-west-1"},
		{"user name", "user_name"},
		{"slash/and\\back", "slash_and_back"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in))
	}
}
