package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spregistry/spreg/pkg/spreg"
)

// SecretMode selects how client secrets appear in OIDC metadata.
type SecretMode string

const (
	SecretEncrypted  SecretMode = "encrypted"
	SecretDecrypted  SecretMode = "decrypted"
	SecretObfuscated SecretMode = "obfuscated"
)

// ParseSecretMode converts a flag value. An empty value selects SecretObfuscated.
func ParseSecretMode(s string) (SecretMode, error) {
	switch m := SecretMode(s); m {
	case "":
		return SecretObfuscated, nil
	case SecretEncrypted, SecretDecrypted, SecretObfuscated:
		return m, nil
	}
	return "", fmt.Errorf("unknown secret mode %q: %w", s, spreg.ErrInvalidConfig)
}

// Decrypter recovers a stored client secret.
type Decrypter interface {
	Decrypt(token string) (string, error)
}

// OIDCGenerator renders OIDC client registrations.
type OIDCGenerator struct {
	catalog   *spreg.AttributeCatalog
	opts      Options
	mode      SecretMode
	decrypter Decrypter
}

// NewOIDCGenerator returns a generator. decrypter is only used in
// SecretDecrypted mode and may be nil otherwise.
func NewOIDCGenerator(catalog *spreg.AttributeCatalog, opts Options, mode SecretMode, decrypter Decrypter) *OIDCGenerator {
	if mode == "" {
		mode = SecretObfuscated
	}
	return &OIDCGenerator{catalog: catalog, opts: opts.withDefaults(), mode: mode, decrypter: decrypter}
}

// Client builds the registration object of one entity.
func (g *OIDCGenerator) Client(e Entity) (map[string]any, error) {
	sp := e.Provider
	client := map[string]any{
		"client_id":      sp.EntityID,
		"redirect_uris":  redirectURIs(e.Children.RedirectURIs),
		"scope":          scope(sp.Scopes),
		"grant_types":    nonNil(sp.GrantTypes),
		"response_types": nonNil(sp.ResponseTypes),
	}
	if len(sp.ResponseTypes) == 0 {
		client["response_types"] = []string{"none"}
	}

	if sp.ClientSecret != "" {
		secret, err := g.secret(sp.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("client %s: %w", sp.EntityID, err)
		}
		client["client_secret"] = secret
	}

	policy := privacyPolicy(sp, g.opts.PrivacyPolicyFallback)
	for _, lang := range spreg.Languages {
		if v := sp.Name.Get(lang); v != "" {
			client["client_name#"+string(lang)] = v
		}
		if v := policy.Get(lang); v != "" {
			client["policy_uri#"+string(lang)] = v
		}
	}

	optional := map[string]string{
		"jwks_uri":                   sp.JWKSURI,
		"subject_type":               sp.SubjectType,
		"token_endpoint_auth_method": sp.TokenEndpointAuthMethod,
		"application_type":           sp.ApplicationType,
	}
	for k, v := range optional {
		if v != "" {
			client[k] = v
		}
	}

	if claims := g.claims(e.Children.Attributes); claims != nil {
		client["claims"] = claims
	}
	return client, nil
}

func (g *OIDCGenerator) secret(stored string) (string, error) {
	switch g.mode {
	case SecretEncrypted:
		return stored, nil
	case SecretDecrypted:
		if g.decrypter == nil {
			return "", fmt.Errorf("no secret key configured: %w", spreg.ErrSecretDecrypt)
		}
		return g.decrypter.Decrypt(stored)
	}
	return spreg.ObfuscatedSecret, nil
}

func redirectURIs(list []*spreg.RedirectURI) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.URI)
	}
	return out
}

func scope(scopes []string) string {
	parts := []string{"openid"}
	for _, s := range scopes {
		if s != "" && !slices.Contains(parts, s) {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// claims returns the requested claims per OIDC claims request syntax, or
// nil when nothing is released.
func (g *OIDCGenerator) claims(links []*spreg.SPAttribute) map[string]map[string]any {
	userinfo := map[string]any{}
	idToken := map[string]any{}
	for _, link := range links {
		a, ok := g.catalog.ByID(link.AttributeID)
		if !ok || !a.PublicOIDC || a.OIDCClaim == "" {
			continue
		}
		if link.OIDCUserinfo {
			userinfo[a.OIDCClaim] = nil
		}
		if link.OIDCIDToken {
			idToken[a.OIDCClaim] = nil
		}
	}
	if len(userinfo) == 0 && len(idToken) == 0 {
		return nil
	}
	out := map[string]map[string]any{}
	if len(userinfo) > 0 {
		out["userinfo"] = userinfo
	}
	if len(idToken) > 0 {
		out["id_token"] = idToken
	}
	return out
}

// Document renders entities as a JSON array. Any client that fails to
// render fails the whole document.
func (g *OIDCGenerator) Document(entities []Entity) ([]byte, error) {
	clients := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		c, err := g.Client(e)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return encodeJSON(clients)
}

// encodeJSON writes v with sorted keys and four space indentation.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode OIDC metadata: %w", err)
	}
	return buf.Bytes(), nil
}
