package spreg

// SAML binding URNs accepted for endpoints.
const (
	BindingHTTPPost       = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	BindingHTTPRedirect   = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	BindingHTTPArtifact   = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Artifact"
	BindingHTTPPostSimple = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST-SimpleSign"
	BindingSOAP           = "urn:oasis:names:tc:SAML:2.0:bindings:SOAP"
	BindingPAOS           = "urn:oasis:names:tc:SAML:2.0:bindings:PAOS"
	BindingSAML1Post      = "urn:oasis:names:tc:SAML:1.0:profiles:browser-post"
	BindingSAML1Artifact  = "urn:oasis:names:tc:SAML:1.0:profiles:artifact-01"
	BindingSAML1SOAP      = "urn:oasis:names:tc:SAML:1.0:bindings:SOAP-binding"
)

// Protocol URNs used in protocolSupportEnumeration.
const (
	ProtocolSAML20 = "urn:oasis:names:tc:SAML:2.0:protocol"
	ProtocolSAML11 = "urn:oasis:names:tc:SAML:1.1:protocol"
	ProtocolSAML10 = "urn:oasis:names:tc:SAML:1.0:protocol"
)

// NameID format URNs in the default catalog.
const (
	NameIDPersistent  = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	NameIDTransient   = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
	NameIDUnspecified = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDEmail       = "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"
	NameIDShibboleth  = "urn:mace:shibboleth:1.0:nameIdentifier"
)

// DefaultNameIDFormats is the NameID catalog used when the configuration does not name one.
var DefaultNameIDFormats = []string{NameIDPersistent, NameIDTransient, NameIDUnspecified, NameIDEmail, NameIDShibboleth}

var allowedBindings = map[EndpointType][]string{
	EndpointACS: {BindingHTTPPost, BindingHTTPArtifact, BindingHTTPPostSimple, BindingPAOS, BindingSAML1Post, BindingSAML1Artifact},
	EndpointSLO: {BindingHTTPPost, BindingHTTPRedirect, BindingHTTPArtifact, BindingSOAP},
	EndpointARS: {BindingSOAP, BindingSAML1SOAP},
}

// BindingAllowed reports whether binding is accepted for endpoints of type t.
func BindingAllowed(t EndpointType, binding string) bool {
	for _, b := range allowedBindings[t] {
		if b == binding {
			return true
		}
	}
	return false
}
