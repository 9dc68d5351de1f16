package testinfra

import (
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSPCertificate(t *testing.T) {
	cert, err := GenerateSPCertificate("sp.example.org", 2048)
	require.NoError(t, err)

	block, _ := pem.Decode(cert.PEM)
	require.NotNil(t, block)
	assert.Equal(t, "CERTIFICATE", block.Type)
	assert.Equal(t, cert.DER, block.Bytes)

	parsed, err := x509.ParseCertificate(cert.DER)
	require.NoError(t, err)
	assert.Equal(t, "sp.example.org", parsed.Subject.CommonName)
	assert.NotEmpty(t, cert.Base64)
}
