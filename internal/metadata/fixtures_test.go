package metadata

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spregistry/spreg/internal/testinfra"
	"github.com/spregistry/spreg/pkg/spreg"
)

var (
	attrMail = &spreg.Attribute{
		ID: uuid.MustParse("7f6d0a52-3c29-4f5e-9a51-1b0f6c4f2a01"), FriendlyName: "mail",
		Name: "urn:oid:0.9.2342.19200300.100.1.3", PublicSAML: true, PublicLDAP: true, PublicOIDC: true, OIDCClaim: "email",
	}
	attrCN = &spreg.Attribute{
		ID: uuid.MustParse("7f6d0a52-3c29-4f5e-9a51-1b0f6c4f2a02"), FriendlyName: "cn",
		Name: "urn:oid:2.5.4.3", PublicSAML: true, PublicLDAP: true,
	}
	attrHidden = &spreg.Attribute{
		ID: uuid.MustParse("7f6d0a52-3c29-4f5e-9a51-1b0f6c4f2a03"), FriendlyName: "nationalIdentificationNumber",
		Name: "urn:oid:1.2.246.21", PublicOIDC: true, OIDCClaim: "national_id",
	}
)

func testCatalog() *spreg.AttributeCatalog {
	return spreg.NewAttributeCatalog([]*spreg.Attribute{attrMail, attrCN, attrHidden})
}

func intPtr(i int) *int { return &i }

func testCertificate(t *testing.T, signing, encryption bool) *spreg.Certificate {
	t.Helper()
	gen, err := testinfra.GenerateSPCertificate("sp.example.org", 2048)
	require.NoError(t, err)
	c, err := spreg.ParseCertificate(gen.Base64, signing, encryption)
	require.NoError(t, err)
	return c
}

// samlEntity returns a SAML service provider that uses every field the
// generator and parser both understand.
func samlEntity(t *testing.T) Entity {
	t.Helper()
	sp := spreg.NewServiceProvider("https://sp.example.org/shibboleth", spreg.ServiceTypeSAML)
	sp.Name = spreg.Localized{FI: "Palvelu", EN: "Service", SV: "Tjänst"}
	sp.Description = spreg.Localized{FI: "Kuvaus", EN: "Description & more"}
	sp.PrivacyPolicyURL = spreg.Localized{EN: "https://sp.example.org/privacy"}
	sp.Organization = spreg.Organization{
		Name:        spreg.Localized{EN: "Example University"},
		DisplayName: spreg.Localized{EN: "Example Uni", FI: "Esimerkki"},
		URL:         spreg.Localized{EN: "https://www.example.org"},
	}
	sp.SignAssertions = true
	sp.EncryptAssertions = false
	sp.ForceMFA = true
	sp.ForceSHA1 = true
	sp.ForceNameIDFormat = true
	sp.NameIDFormats = []string{spreg.NameIDPersistent, spreg.NameIDTransient}
	sp.LoginPageURL = "https://sp.example.org/login"
	sp.DiscoveryServiceURL = "https://sp.example.org/Shibboleth.sso/DS"

	return Entity{
		Provider: sp,
		Children: spreg.Children{
			Certificates: []*spreg.Certificate{testCertificate(t, true, true)},
			Endpoints: []*spreg.Endpoint{
				{Type: spreg.EndpointARS, Binding: spreg.BindingSOAP, Location: "https://sp.example.org/Shibboleth.sso/Artifact/SOAP", Index: intPtr(1)},
				{Type: spreg.EndpointSLO, Binding: spreg.BindingHTTPRedirect, Location: "https://sp.example.org/Shibboleth.sso/SLO/Redirect", ResponseLocation: "https://sp.example.org/slo/response"},
				{Type: spreg.EndpointACS, Binding: spreg.BindingHTTPPost, Location: "https://sp.example.org/Shibboleth.sso/SAML2/POST", Index: intPtr(1), IsDefault: true},
				{Type: spreg.EndpointACS, Binding: spreg.BindingHTTPArtifact, Location: "https://sp.example.org/Shibboleth.sso/SAML2/Artifact", Index: intPtr(2)},
			},
			Contacts: []*spreg.Contact{
				{Type: spreg.ContactTechnical, FirstName: "Tea", LastName: "Tech", Email: "tech@example.org"},
				{Type: spreg.ContactSupport, FirstName: " ", LastName: " ", Email: "support@example.org"},
			},
			Attributes: []*spreg.SPAttribute{
				{AttributeID: attrMail.ID, Reason: "login"},
				{AttributeID: attrCN.ID, Reason: "display"},
			},
		},
	}
}
