package spreg

import (
	"reflect"
	"slices"
)

// FieldGroup groups service provider fields the way forms and history views present them.
type FieldGroup int

const (
	GroupBasic FieldGroup = iota
	GroupOrganization
	GroupSAML
	GroupLDAP
	GroupOIDC
	GroupPublication
	GroupAdmin
)

// String returns the group name used in CLI output.
func (g FieldGroup) String() string {
	switch g {
	case GroupBasic:
		return "basic"
	case GroupOrganization:
		return "organization"
	case GroupSAML:
		return "saml"
	case GroupLDAP:
		return "ldap"
	case GroupOIDC:
		return "oidc"
	case GroupPublication:
		return "publication"
	case GroupAdmin:
		return "admin"
	}
	return "unknown"
}

// Field describes one service provider field.
type Field struct {
	Name  string
	Label string
	Group FieldGroup

	// Tracked fields are part of published metadata. Changing one on a
	// validated version freezes that version into history.
	Tracked bool

	Value func(*ServiceProvider) any
}

var fieldTable = []Field{
	{"entity_id", "Entity ID", GroupBasic, true, func(sp *ServiceProvider) any { return sp.EntityID }},
	{"service_type", "Service type", GroupBasic, true, func(sp *ServiceProvider) any { return sp.ServiceType }},
	{"name", "Service name", GroupBasic, true, func(sp *ServiceProvider) any { return sp.Name }},
	{"description", "Service description", GroupBasic, true, func(sp *ServiceProvider) any { return sp.Description }},
	{"privacy_policy_url", "Privacy policy URL", GroupBasic, true, func(sp *ServiceProvider) any { return sp.PrivacyPolicyURL }},

	{"organization_name", "Organization name", GroupOrganization, true, func(sp *ServiceProvider) any { return sp.Organization.Name }},
	{"organization_display_name", "Organization display name", GroupOrganization, true, func(sp *ServiceProvider) any { return sp.Organization.DisplayName }},
	{"organization_url", "Organization URL", GroupOrganization, true, func(sp *ServiceProvider) any { return sp.Organization.URL }},
	{"organization_privacy_policy_url", "Organization privacy policy URL", GroupOrganization, true, func(sp *ServiceProvider) any { return sp.Organization.PrivacyPolicyURL }},

	{"sign_assertions", "Sign assertions", GroupSAML, true, func(sp *ServiceProvider) any { return sp.SignAssertions }},
	{"sign_responses", "Sign responses", GroupSAML, true, func(sp *ServiceProvider) any { return sp.SignResponses }},
	{"encrypt_assertions", "Encrypt assertions", GroupSAML, true, func(sp *ServiceProvider) any { return sp.EncryptAssertions }},
	{"force_sha1", "Use SHA-1", GroupSAML, true, func(sp *ServiceProvider) any { return sp.ForceSHA1 }},
	{"force_mfa", "Require MFA", GroupSAML, true, func(sp *ServiceProvider) any { return sp.ForceMFA }},
	{"force_nameidformat", "Force NameID format", GroupSAML, true, func(sp *ServiceProvider) any { return sp.ForceNameIDFormat }},
	{"nameid_formats", "NameID formats", GroupSAML, true, func(sp *ServiceProvider) any { return sp.NameIDFormats }},
	{"login_page_url", "Login page URL", GroupSAML, true, func(sp *ServiceProvider) any { return sp.LoginPageURL }},
	{"discovery_service_url", "Discovery service URL", GroupSAML, true, func(sp *ServiceProvider) any { return sp.DiscoveryServiceURL }},

	{"server_names", "Server names", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.ServerNames }},
	{"target_group", "Target group", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.TargetGroup }},
	{"service_account", "Service account", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.ServiceAccount }},
	{"service_account_contact", "Service account contact", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.ServiceAccountContact }},
	{"can_access_all_ldap_groups", "Access to all LDAP groups", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.CanAccessAllLDAPGroups }},
	{"local_storage_users", "Stores users locally", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.LocalStorageUsers }},
	{"local_storage_passwords", "Stores passwords locally", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.LocalStoragePasswords }},
	{"local_storage_passwords_info", "Password storage details", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.LocalStoragePasswordsInfo }},
	{"local_storage_groups", "Stores groups locally", GroupLDAP, true, func(sp *ServiceProvider) any { return sp.LocalStorageGroups }},

	{"client_secret", "Client secret", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.ClientSecret }},
	{"grant_types", "Grant types", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.GrantTypes }},
	{"response_types", "Response types", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.ResponseTypes }},
	{"scopes", "Scopes", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.Scopes }},
	{"jwks_uri", "JWKS URI", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.JWKSURI }},
	{"subject_type", "Subject type", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.SubjectType }},
	{"token_endpoint_auth_method", "Token endpoint auth method", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.TokenEndpointAuthMethod }},
	{"application_type", "Application type", GroupOIDC, true, func(sp *ServiceProvider) any { return sp.ApplicationType }},

	{"production", "Production", GroupPublication, true, func(sp *ServiceProvider) any { return sp.Production }},
	{"test", "Test", GroupPublication, true, func(sp *ServiceProvider) any { return sp.Test }},

	{"admins", "Administrators", GroupAdmin, false, func(sp *ServiceProvider) any { return sp.Admins }},
	{"admin_notes", "Admin notes", GroupAdmin, false, func(sp *ServiceProvider) any { return sp.AdminNotes }},
}

// Fields returns the descriptors of the given groups in table order.
// With no groups it returns every field.
func Fields(groups ...FieldGroup) []Field {
	if len(groups) == 0 {
		return slices.Clone(fieldTable)
	}
	var out []Field
	for _, f := range fieldTable {
		if slices.Contains(groups, f.Group) {
			out = append(out, f)
		}
	}
	return out
}

// FieldByName looks up a descriptor by its stable name.
func FieldByName(name string) (Field, bool) {
	for _, f := range fieldTable {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldChange is one differing field between two versions.
type FieldChange struct {
	Field Field
	Old   any
	New   any
}

// DiffFields lists the fields whose values differ between before and after.
func DiffFields(before, after *ServiceProvider) []FieldChange {
	var changes []FieldChange
	for _, f := range fieldTable {
		o, n := f.Value(before), f.Value(after)
		if equalValues(o, n) {
			continue
		}
		changes = append(changes, FieldChange{Field: f, Old: o, New: n})
	}
	return changes
}

// HasTrackedChange reports whether any change touches a tracked field.
func HasTrackedChange(changes []FieldChange) bool {
	for _, c := range changes {
		if c.Field.Tracked {
			return true
		}
	}
	return false
}

// nil and empty slices are the same value for history purposes.
func equalValues(a, b any) bool {
	if as, ok := a.([]string); ok {
		bs, _ := b.([]string)
		return slices.Equal(as, bs)
	}
	return reflect.DeepEqual(a, b)
}
