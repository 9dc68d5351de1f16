package spreg

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// NormalizeCertificate strips PEM armor and whitespace from certificate text,
// leaving the base64 body.
func NormalizeCertificate(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(strings.Join(strings.Fields(line), ""))
	}
	return b.String()
}

// ParseCertificate decodes base64 or PEM certificate text and fills the
// derived fields of a Certificate. The Record header is left empty.
func ParseCertificate(text string, signing, encryption bool) (*Certificate, error) {
	body := NormalizeCertificate(text)
	if body == "" {
		return nil, fmt.Errorf("empty certificate: %w", ErrInvalidCertificate)
	}
	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("certificate is not base64: %v: %w", err, ErrInvalidCertificate)
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidCertificate)
	}

	sum := sha256.Sum256(der)
	return &Certificate{
		Certificate: body,
		Signing:     signing,
		Encryption:  encryption,
		CN:          parsed.Subject.CommonName,
		Issuer:      parsed.Issuer.CommonName,
		ValidFrom:   parsed.NotBefore.UTC(),
		ValidUntil:  parsed.NotAfter.UTC(),
		KeySize:     keySize(parsed.PublicKey),
		Fingerprint: strings.ToUpper(hex.EncodeToString(sum[:])),
	}, nil
}

func keySize(pub any) int {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return k.N.BitLen()
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case ed25519.PublicKey:
		return 256
	}
	return 0
}
