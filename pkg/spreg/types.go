package spreg

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ServiceType identifies the protocol a service provider is published for.
type ServiceType string

const (
	ServiceTypeSAML ServiceType = "saml"
	ServiceTypeLDAP ServiceType = "ldap"
	ServiceTypeOIDC ServiceType = "oidc"
)

// IsValid reports whether t is one of the known service types.
func (t ServiceType) IsValid() bool {
	switch t {
	case ServiceTypeSAML, ServiceTypeLDAP, ServiceTypeOIDC:
		return true
	}
	return false
}

// ParseServiceType converts a command-line or stored value into a ServiceType.
func ParseServiceType(s string) (ServiceType, error) {
	t := ServiceType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown service type %q: %w", s, ErrInvalidConfig)
	}
	return t, nil
}

// Lang is a metadata language tag.
type Lang string

const (
	LangFI Lang = "fi"
	LangEN Lang = "en"
	LangSV Lang = "sv"
)

// Languages lists the supported languages in output order.
var Languages = []Lang{LangFI, LangEN, LangSV}

// Localized holds one value per supported language.
type Localized struct {
	FI string `json:"fi,omitempty"`
	EN string `json:"en,omitempty"`
	SV string `json:"sv,omitempty"`
}

// Get returns the value for lang, or "" for an unsupported language.
func (l Localized) Get(lang Lang) string {
	switch lang {
	case LangFI:
		return l.FI
	case LangEN:
		return l.EN
	case LangSV:
		return l.SV
	}
	return ""
}

// Set stores v for lang and reports whether the language is supported.
func (l *Localized) Set(lang Lang, v string) bool {
	switch lang {
	case LangFI:
		l.FI = v
	case LangEN:
		l.EN = v
	case LangSV:
		l.SV = v
	default:
		return false
	}
	return true
}

// IsZero reports whether no language has a value.
func (l Localized) IsZero() bool {
	return l.FI == "" && l.EN == "" && l.SV == ""
}

// Organization is the organization block published with an SP.
type Organization struct {
	Name             Localized `json:"name"`
	DisplayName      Localized `json:"display_name"`
	URL              Localized `json:"url"`
	PrivacyPolicyURL Localized `json:"privacy_policy_url"`
}

// IsZero reports whether the organization carries no published data.
func (o Organization) IsZero() bool {
	return o.Name.IsZero() && o.DisplayName.IsZero() && o.URL.IsZero()
}

// ServiceProvider is one version of a registered service.
//
// ID is the stable live identity: every version of the same service shares
// it, and child records reference it. Version numbers start at 1; a version
// is historical once a newer version with the same ID exists, and historical
// versions are never written again.
type ServiceProvider struct {
	ID          uuid.UUID   `json:"id"`
	Version     int         `json:"version"`
	EntityID    string      `json:"entity_id"`
	ServiceType ServiceType `json:"service_type"`

	Name             Localized    `json:"name"`
	Description      Localized    `json:"description"`
	PrivacyPolicyURL Localized    `json:"privacy_policy_url"`
	Organization     Organization `json:"organization"`

	// SAML
	SignAssertions      bool     `json:"sign_assertions"`
	SignResponses       bool     `json:"sign_responses"`
	EncryptAssertions   bool     `json:"encrypt_assertions"`
	ForceSHA1           bool     `json:"force_sha1"`
	ForceMFA            bool     `json:"force_mfa"`
	ForceNameIDFormat   bool     `json:"force_nameidformat"`
	NameIDFormats       []string `json:"nameid_formats,omitempty"`
	LoginPageURL        string   `json:"login_page_url,omitempty"`
	DiscoveryServiceURL string   `json:"discovery_service_url,omitempty"`

	// LDAP
	ServerNames               []string `json:"server_names,omitempty"`
	TargetGroup               string   `json:"target_group,omitempty"`
	ServiceAccount            bool     `json:"service_account"`
	ServiceAccountContact     string   `json:"service_account_contact,omitempty"`
	CanAccessAllLDAPGroups    bool     `json:"can_access_all_ldap_groups"`
	LocalStorageUsers         bool     `json:"local_storage_users"`
	LocalStoragePasswords     bool     `json:"local_storage_passwords"`
	LocalStoragePasswordsInfo string   `json:"local_storage_passwords_info,omitempty"`
	LocalStorageGroups        bool     `json:"local_storage_groups"`

	// OIDC
	ClientSecret            string   `json:"client_secret,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scopes                  []string `json:"scopes,omitempty"`
	JWKSURI                 string   `json:"jwks_uri,omitempty"`
	SubjectType             string   `json:"subject_type,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	ApplicationType         string   `json:"application_type,omitempty"`

	Production bool `json:"production"`
	Test       bool `json:"test"`

	Admins     []string `json:"admins,omitempty"`
	AdminNotes string   `json:"admin_notes,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndAt     *time.Time `json:"end_at,omitempty"`
	Validated *time.Time `json:"validated,omitempty"`
	Modified  bool       `json:"modified"`
}

// NewServiceProvider returns a version-1 record with SAML defaults applied.
func NewServiceProvider(entityID string, serviceType ServiceType) *ServiceProvider {
	return &ServiceProvider{
		ID:                uuid.New(),
		Version:           1,
		EntityID:          entityID,
		ServiceType:       serviceType,
		SignResponses:     true,
		EncryptAssertions: true,
	}
}

// Active reports whether the record has not been soft-deleted.
func (sp *ServiceProvider) Active() bool {
	return sp.EndAt == nil
}

// Clone returns a deep copy of sp.
func (sp *ServiceProvider) Clone() *ServiceProvider {
	c := *sp
	c.NameIDFormats = slices.Clone(sp.NameIDFormats)
	c.ServerNames = slices.Clone(sp.ServerNames)
	c.GrantTypes = slices.Clone(sp.GrantTypes)
	c.ResponseTypes = slices.Clone(sp.ResponseTypes)
	c.Scopes = slices.Clone(sp.Scopes)
	c.Admins = slices.Clone(sp.Admins)
	c.EndAt = cloneTime(sp.EndAt)
	c.Validated = cloneTime(sp.Validated)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// ProviderFilter selects current service provider versions from a store.
type ProviderFilter struct {
	// ServiceType restricts results to one protocol. Empty matches all.
	ServiceType ServiceType

	// EntityIDs restricts results to an explicit include-list. Empty matches all.
	EntityIDs []string

	// IncludeEnded also returns soft-deleted providers.
	IncludeEnded bool
}

// Match reports whether sp passes the filter.
func (f ProviderFilter) Match(sp *ServiceProvider) bool {
	if f.ServiceType != "" && sp.ServiceType != f.ServiceType {
		return false
	}
	if !f.IncludeEnded && !sp.Active() {
		return false
	}
	if len(f.EntityIDs) > 0 && !slices.Contains(f.EntityIDs, sp.EntityID) {
		return false
	}
	return true
}
