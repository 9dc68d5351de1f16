package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spregistry/spreg/pkg/spreg"
)

func acs(binding string) *spreg.Endpoint {
	return &spreg.Endpoint{Type: spreg.EndpointACS, Binding: binding, Location: "https://sp.example.org/acs"}
}

func TestProtocolSupport(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []*spreg.Endpoint
		want      string
	}{
		{"no endpoints", nil, "urn:oasis:names:tc:SAML:2.0:protocol"},
		{"saml2 post", []*spreg.Endpoint{acs(spreg.BindingHTTPPost)}, "urn:oasis:names:tc:SAML:2.0:protocol"},
		{"saml1 post only", []*spreg.Endpoint{acs(spreg.BindingSAML1Post)},
			"urn:oasis:names:tc:SAML:1.1:protocol urn:oasis:names:tc:SAML:1.0:protocol"},
		{"saml1 and saml2 post", []*spreg.Endpoint{acs(spreg.BindingSAML1Post), acs(spreg.BindingHTTPPost)},
			"urn:oasis:names:tc:SAML:2.0:protocol urn:oasis:names:tc:SAML:1.1:protocol urn:oasis:names:tc:SAML:1.0:protocol"},
		{"saml1 post on logout endpoint is ignored", []*spreg.Endpoint{
			{Type: spreg.EndpointSLO, Binding: spreg.BindingSAML1Post, Location: "https://sp.example.org/slo"},
		}, "urn:oasis:names:tc:SAML:2.0:protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProtocolSupport(tt.endpoints))
		})
	}
}

func TestSAMLGenerator_DefaultsProduceNoEntityAttributes(t *testing.T) {
	sp := spreg.NewServiceProvider("https://minimal.example.org", spreg.ServiceTypeSAML)
	g := NewSAMLGenerator(testCatalog(), Options{})

	out, err := g.Document([]Entity{{Provider: sp}})
	require.NoError(t, err)
	xml := string(out)

	assert.True(t, strings.HasPrefix(xml, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, xml, `<EntitiesDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata"`)
	assert.Contains(t, xml, `xmlns:mdattr="urn:oasis:names:tc:SAML:metadata:attribute"`)
	assert.NotContains(t, xml, "EntityAttributes")
	assert.NotContains(t, xml, "AttributeConsumingService")
	assert.NotContains(t, xml, "Organization")
	assert.NotContains(t, xml, "xmlns:xmlns")
	assert.Contains(t, xml, `<EntityDescriptor entityID="https://minimal.example.org">`)
}

func TestSAMLGenerator_EntityAttributes(t *testing.T) {
	e := samlEntity(t)
	g := NewSAMLGenerator(testCatalog(), Options{MFAContext: "https://refeds.org/profile/mfa"})

	out, err := g.Document([]Entity{e})
	require.NoError(t, err)
	xml := string(out)

	for _, want := range []string{
		`<saml:Attribute Name="http://shibboleth.net/ns/profiles/defaultAuthenticationMethods" NameFormat="urn:oasis:names:tc:SAML:2.0:attrname-format:uri">`,
		`<saml:AttributeValue>https://refeds.org/profile/mfa</saml:AttributeValue>`,
		`<saml:AttributeValue>shibboleth.SecurityConfiguration.SHA1</saml:AttributeValue>`,
		`Name="http://shibboleth.net/ns/profiles/saml2/sso/browser/signAssertions"`,
		`Name="http://shibboleth.net/ns/profiles/saml2/sso/browser/encryptAssertions"`,
		`<saml:AttributeValue>` + spreg.NameIDPersistent + `</saml:AttributeValue>`,
	} {
		assert.Contains(t, xml, want)
	}
	assert.NotContains(t, xml, "signResponses", "default value is not published")
}

func TestSAMLGenerator_ElementOrder(t *testing.T) {
	e := samlEntity(t)
	out, err := NewSAMLGenerator(testCatalog(), Options{}).Document([]Entity{e})
	require.NoError(t, err)
	xml := string(out)

	order := []string{
		"<Extensions>",
		"<SPSSODescriptor",
		"<mdui:UIInfo>",
		"<init:RequestInitiator",
		"<idpdisc:DiscoveryResponse",
		"<KeyDescriptor>",
		"<ArtifactResolutionService",
		"<SingleLogoutService",
		"<NameIDFormat>",
		"<AssertionConsumerService",
		"<AttributeConsumingService",
		"</SPSSODescriptor>",
		"<Organization>",
		"<ContactPerson",
	}
	last := -1
	for _, tag := range order {
		i := strings.Index(xml, tag)
		require.GreaterOrEqual(t, i, 0, "missing %s", tag)
		assert.Greater(t, i, last, "%s out of order", tag)
		last = i
	}
}

func TestSAMLGenerator_Details(t *testing.T) {
	e := samlEntity(t)
	e.Children.Certificates = append(e.Children.Certificates, testCertificate(t, false, true))
	out, err := NewSAMLGenerator(testCatalog(), Options{}).Document([]Entity{e})
	require.NoError(t, err)
	xml := string(out)

	assert.Contains(t, xml, `<KeyDescriptor use="encryption">`)
	assert.Contains(t, xml, `<mdui:DisplayName xml:lang="fi">Palvelu</mdui:DisplayName>`)
	assert.Contains(t, xml, `Description &amp; more`)
	assert.Contains(t, xml, `<EmailAddress>mailto:tech@example.org</EmailAddress>`)
	assert.Contains(t, xml, `<GivenName>Tea</GivenName>`)
	assert.Contains(t, xml, `ResponseLocation="https://sp.example.org/slo/response"`)
	assert.Contains(t, xml, `index="1" isDefault="true"`)
	assert.Contains(t, xml, `<ServiceName xml:lang="en">Service</ServiceName>`)
	assert.Contains(t, xml, `FriendlyName="mail" Name="urn:oid:0.9.2342.19200300.100.1.3"`)
	assert.Equal(t, 1, strings.Count(xml, "<GivenName>"), "blank contact names are not written")

	fi := strings.Index(xml, `xml:lang="fi">Palvelu`)
	en := strings.Index(xml, `xml:lang="en">Service`)
	sv := strings.Index(xml, `xml:lang="sv">Tjänst`)
	assert.True(t, fi < en && en < sv, "languages are written fi, en, sv")
}

func TestSAMLGenerator_PrivacyPolicyFallback(t *testing.T) {
	sp := spreg.NewServiceProvider("https://fallback.example.org", spreg.ServiceTypeSAML)
	sp.Organization.Name.EN = "Org"
	sp.Organization.PrivacyPolicyURL.EN = "https://org.example.org/privacy"
	e := Entity{Provider: sp}

	without, err := NewSAMLGenerator(testCatalog(), Options{}).Document([]Entity{e})
	require.NoError(t, err)
	assert.NotContains(t, string(without), "PrivacyStatementURL")

	with, err := NewSAMLGenerator(testCatalog(), Options{PrivacyPolicyFallback: true}).Document([]Entity{e})
	require.NoError(t, err)
	assert.Contains(t, string(with), `<mdui:PrivacyStatementURL xml:lang="en">https://org.example.org/privacy</mdui:PrivacyStatementURL>`)
}

func TestSAMLGenerator_AttributesNotPublicForSAMLAreLeftOut(t *testing.T) {
	sp := spreg.NewServiceProvider("https://hidden.example.org", spreg.ServiceTypeSAML)
	e := Entity{Provider: sp, Children: spreg.Children{Attributes: []*spreg.SPAttribute{{AttributeID: attrHidden.ID}}}}

	out, err := NewSAMLGenerator(testCatalog(), Options{}).Document([]Entity{e})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "AttributeConsumingService")
}
