package secrets

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexSecret = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func TestHasKey(t *testing.T) {
	assert.False(t, NewMasterKey("", nil).HasKey())
	assert.False(t, NewMasterKey("   \n", nil).HasKey())
	assert.True(t, NewMasterKey("passphrase", nil).HasKey())
}

func TestDeriveKeyBytes_Empty(t *testing.T) {
	_, err := NewMasterKey("  ", nil).DeriveKeyBytes()
	require.Error(t, err)
	assert.ErrorIs(t, err, autherrors.ErrConfig)
}

func TestDeriveKeyBytes_HexSecretDecodedDirectly(t *testing.T) {
	key, err := NewMasterKey(hexSecret, nil).DeriveKeyBytes()
	require.NoError(t, err)

	want, _ := hex.DecodeString(hexSecret)
	assert.Equal(t, want, key)
}

func TestDeriveKeyBytes_HexSecretTrimmed(t *testing.T) {
	key, err := NewMasterKey("  "+hexSecret+"\n", nil).DeriveKeyBytes()
	require.NoError(t, err)

	want, _ := hex.DecodeString(hexSecret)
	assert.Equal(t, want, key)
}

func TestDeriveKeyBytes_PassphraseHashed(t *testing.T) {
	for _, secret := range []string{"a", "correct horse battery staple", " padded ", strings.Repeat("z", 64)} {
		key, err := NewMasterKey(secret, nil).DeriveKeyBytes()
		require.NoError(t, err)
		require.Len(t, key, KeySize)

		want := sha256.Sum256([]byte(strings.TrimSpace(secret)))
		assert.Equal(t, want[:], key, "secret %q", secret)
	}
}

func TestDeriveKeyBytes_Deterministic(t *testing.T) {
	m := NewMasterKey("stable", nil)
	a, err := m.DeriveKeyBytes()
	require.NoError(t, err)
	b, err := m.DeriveKeyBytes()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveKeyBytes_PlaceholderWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	key, err := NewMasterKey("change-me", logger).DeriveKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, KeySize)
	assert.Contains(t, buf.String(), "placeholder")
}

func TestLegacyKeyBytes_PadsShortSecret(t *testing.T) {
	key, err := NewMasterKey("abc", nil).LegacyKeyBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"+strings.Repeat("0", 29)), key)
}

func TestLegacyKeyBytes_TruncatesLongSecret(t *testing.T) {
	secret := strings.Repeat("x", 40)
	key, err := NewMasterKey(secret, nil).LegacyKeyBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte(strings.Repeat("x", 32)), key)
}
