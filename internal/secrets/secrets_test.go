package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spregistry/spreg/pkg/spreg"
)

func newKey(t *testing.T) string {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	return k
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := New(newKey(t))
	require.NoError(t, err)

	tok, err := c.Encrypt("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", tok)

	got, err := c.Decrypt(tok)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestCipher_RotatedKey(t *testing.T) {
	oldKey := newKey(t)
	old, err := New(oldKey)
	require.NoError(t, err)
	tok, err := old.Encrypt("legacy")
	require.NoError(t, err)

	rotated, err := New(newKey(t), oldKey)
	require.NoError(t, err)
	got, err := rotated.Decrypt(tok)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got)
}

func TestCipher_WrongKey(t *testing.T) {
	a, err := New(newKey(t))
	require.NoError(t, err)
	b, err := New(newKey(t))
	require.NoError(t, err)

	tok, err := a.Encrypt("x")
	require.NoError(t, err)
	_, err = b.Decrypt(tok)
	assert.ErrorIs(t, err, spreg.ErrSecretDecrypt)

	_, err = b.Decrypt("not a token")
	assert.ErrorIs(t, err, spreg.ErrSecretDecrypt)
}

func TestNew_InvalidKey(t *testing.T) {
	_, err := New("short")
	assert.ErrorIs(t, err, spreg.ErrInvalidConfig)

	_, err = New(newKey(t), "bad")
	assert.ErrorIs(t, err, spreg.ErrInvalidConfig)
}
