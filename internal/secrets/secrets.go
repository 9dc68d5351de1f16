// Package secrets encrypts OIDC client secrets at rest with Fernet tokens.
package secrets

import (
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Cipher encrypts with the primary key and decrypts with the primary key or
// any of the retired keys, so keys can be rotated without re-encrypting.
type Cipher struct {
	primary *fernet.Key
	keys    []*fernet.Key
}

// New builds a Cipher from base64 encoded Fernet keys.
func New(key string, oldKeys ...string) (*Cipher, error) {
	primary, err := fernet.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", spreg.ErrInvalidConfig)
	}
	c := &Cipher{primary: primary, keys: []*fernet.Key{primary}}
	for i, s := range oldKeys {
		k, err := fernet.DecodeKey(s)
		if err != nil {
			return nil, fmt.Errorf("decode old secret key %d: %w", i+1, spreg.ErrInvalidConfig)
		}
		c.keys = append(c.keys, k)
	}
	return c, nil
}

// GenerateKey returns a new random key in the encoding New accepts.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return k.Encode(), nil
}

// Encrypt returns the Fernet token for plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), c.primary)
	if err != nil {
		return "", fmt.Errorf("encrypt secret: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts token. Tokens never expire.
func (c *Cipher) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), -1, c.keys)
	if msg == nil {
		return "", spreg.ErrSecretDecrypt
	}
	return string(msg), nil
}
