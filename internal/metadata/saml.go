package metadata

import (
	"strings"

	"github.com/spregistry/spreg/pkg/spreg"
)

// XML namespaces written into and accepted from SAML metadata.
const (
	NSMetadata  = "urn:oasis:names:tc:SAML:2.0:metadata"
	NSDSig      = "http://www.w3.org/2000/09/xmldsig#"
	NSMDUI      = "urn:oasis:names:tc:SAML:metadata:ui"
	NSMDAttr    = "urn:oasis:names:tc:SAML:metadata:attribute"
	NSAssertion = "urn:oasis:names:tc:SAML:2.0:assertion"
	NSInit      = "urn:oasis:names:tc:SAML:profiles:SSO:request-init"
	NSIdPDisc   = "urn:oasis:names:tc:SAML:profiles:SSO:idp-discovery-protocol"
)

// Entity attribute names and values that express service provider flags.
const (
	AttrAuthnMethods        = "http://shibboleth.net/ns/profiles/defaultAuthenticationMethods"
	AttrSecurityConfig      = "http://shibboleth.net/ns/profiles/securityConfiguration"
	AttrSignAssertions      = "http://shibboleth.net/ns/profiles/saml2/sso/browser/signAssertions"
	AttrSignResponses       = "http://shibboleth.net/ns/profiles/saml2/sso/browser/signResponses"
	AttrEncryptAssertions   = "http://shibboleth.net/ns/profiles/saml2/sso/browser/encryptAssertions"
	AttrNameIDPrecedence    = "http://shibboleth.net/ns/profiles/nameIDFormatPrecedence"
	SecurityConfigSHA1      = "shibboleth.SecurityConfiguration.SHA1"
	BindingRequestInitiator = NSInit
	BindingDiscoveryResp    = NSIdPDisc
)

// Options are the generator and parser settings taken from configuration.
type Options struct {
	// MFAContext is the authentication context that marks an SP as
	// requiring multi-factor authentication.
	MFAContext string

	// PrivacyPolicyFallback publishes the organization privacy policy for
	// SPs that do not have their own.
	PrivacyPolicyFallback bool

	// NameIDFormats is the catalog of accepted NameID formats.
	NameIDFormats []string

	// LDAPFlatLists writes LDAP attributes and user groups without
	// container elements.
	LDAPFlatLists bool
}

func (o Options) withDefaults() Options {
	if o.MFAContext == "" {
		o.MFAContext = spreg.DefaultMFAContext
	}
	if len(o.NameIDFormats) == 0 {
		o.NameIDFormats = spreg.DefaultNameIDFormats
	}
	return o
}

// Entity is a service provider version together with the children to
// publish with it.
type Entity struct {
	Provider *spreg.ServiceProvider
	Children spreg.Children
}

// privacyPolicy returns the privacy policy URLs to publish for sp.
func privacyPolicy(sp *spreg.ServiceProvider, fallback bool) spreg.Localized {
	if fallback && sp.PrivacyPolicyURL.IsZero() {
		return sp.Organization.PrivacyPolicyURL
	}
	return sp.PrivacyPolicyURL
}

// ProtocolSupport returns the protocolSupportEnumeration for endpoints.
// SAML 1.x is announced only when an assertion consumer service accepts the
// SAML 1 browser POST profile.
func ProtocolSupport(endpoints []*spreg.Endpoint) string {
	var saml1, saml2 bool
	for _, e := range endpoints {
		if e.Type != spreg.EndpointACS {
			continue
		}
		switch e.Binding {
		case spreg.BindingSAML1Post:
			saml1 = true
		case spreg.BindingHTTPPost:
			saml2 = true
		}
	}
	switch {
	case saml1 && saml2:
		return strings.Join([]string{spreg.ProtocolSAML20, spreg.ProtocolSAML11, spreg.ProtocolSAML10}, " ")
	case saml1:
		return strings.Join([]string{spreg.ProtocolSAML11, spreg.ProtocolSAML10}, " ")
	}
	return spreg.ProtocolSAML20
}
