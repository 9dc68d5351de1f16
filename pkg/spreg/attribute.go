package spreg

import (
	"strings"

	"github.com/google/uuid"
)

// AttributeNameFormatURI is the NameFormat used for catalog attributes by default.
const AttributeNameFormatURI = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"

// Attribute is an entry in the attribute catalog.
type Attribute struct {
	ID           uuid.UUID `json:"id"`
	FriendlyName string    `json:"friendly_name"`
	Name         string    `json:"name"`
	OID          string    `json:"oid,omitempty"`
	NameFormat   string    `json:"name_format,omitempty"`
	Scoped       bool      `json:"scoped"`
	PublicSAML   bool      `json:"public_saml"`
	PublicLDAP   bool      `json:"public_ldap"`
	PublicOIDC   bool      `json:"public_oidc"`
	OIDCClaim    string    `json:"oidc_claim,omitempty"`
}

// Format returns the NameFormat, falling back to the URI format.
func (a *Attribute) Format() string {
	if a.NameFormat == "" {
		return AttributeNameFormatURI
	}
	return a.NameFormat
}

// Clone returns a copy of a.
func (a *Attribute) Clone() *Attribute {
	c := *a
	return &c
}

// AttributeCatalog indexes catalog attributes for lookups during import and generation.
type AttributeCatalog struct {
	byID       map[uuid.UUID]*Attribute
	byName     map[string]*Attribute
	byFriendly map[string]*Attribute
}

// NewAttributeCatalog builds a catalog index. Friendly names match case-insensitively.
func NewAttributeCatalog(attrs []*Attribute) *AttributeCatalog {
	c := &AttributeCatalog{
		byID:       make(map[uuid.UUID]*Attribute, len(attrs)),
		byName:     make(map[string]*Attribute, len(attrs)),
		byFriendly: make(map[string]*Attribute, len(attrs)),
	}
	for _, a := range attrs {
		c.byID[a.ID] = a
		if a.Name != "" {
			c.byName[a.Name] = a
		}
		if a.FriendlyName != "" {
			c.byFriendly[strings.ToLower(a.FriendlyName)] = a
		}
	}
	return c
}

// ByID returns the attribute with id.
func (c *AttributeCatalog) ByID(id uuid.UUID) (*Attribute, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Lookup finds an attribute by formal name first, then by friendly name.
func (c *AttributeCatalog) Lookup(name, friendlyName string) (*Attribute, bool) {
	if a, ok := c.byName[name]; ok && name != "" {
		return a, true
	}
	if friendlyName == "" {
		return nil, false
	}
	a, ok := c.byFriendly[strings.ToLower(friendlyName)]
	return a, ok
}
