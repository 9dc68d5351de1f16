package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spregistry/spreg/pkg/spreg"
)

func ldapEntity() Entity {
	sp := spreg.NewServiceProvider("ldap.example.org/service", spreg.ServiceTypeLDAP)
	sp.Name = spreg.Localized{FI: "Hakemisto", EN: "Directory"}
	sp.ServerNames = []string{"app1.example.org", "app2.example.org"}
	sp.TargetGroup = "staff"
	sp.ServiceAccount = true
	sp.ServiceAccountContact = "admin@example.org 0401234567"
	sp.LocalStoragePasswords = true
	sp.LocalStoragePasswordsInfo = "bcrypt"
	return Entity{
		Provider: sp,
		Children: spreg.Children{
			Attributes: []*spreg.SPAttribute{{AttributeID: attrCN.ID}, {AttributeID: attrHidden.ID}},
			UserGroups: []*spreg.UserGroup{{Name: "cn=staff,ou=groups"}},
		},
	}
}

func TestLDAPGenerator_Grouped(t *testing.T) {
	out, err := NewLDAPGenerator(testCatalog(), Options{}).Document([]Entity{ldapEntity()})
	require.NoError(t, err)
	xml := string(out)

	assert.True(t, strings.HasPrefix(xml, `<?xml version="1.0" encoding="UTF-8"?>`))
	for _, want := range []string{
		"<LdapEntities>",
		`<Entity ID="ldap.example.org/service">`,
		`<DisplayName xml:lang="fi">Hakemisto</DisplayName>`,
		"<ServerName>app2.example.org</ServerName>",
		"<TargetGroup>staff</TargetGroup>",
		"<ServiceAccount>true</ServiceAccount>",
		"<ServiceAccountContact>admin@example.org 0401234567</ServiceAccountContact>",
		"<LocalStorageUsers>false</LocalStorageUsers>",
		"<LocalStoragePasswords>true</LocalStoragePasswords>",
		"<LocalStoragePasswordsInfo>bcrypt</LocalStoragePasswordsInfo>",
		"<CanAccessAllLdapGroups>false</CanAccessAllLdapGroups>",
		"<Attributes>",
		"<Attribute>cn</Attribute>",
		"<UserGroups>",
		"<UserGroup>cn=staff,ou=groups</UserGroup>",
	} {
		assert.Contains(t, xml, want)
	}
	assert.NotContains(t, xml, "nationalIdentificationNumber")
}

func TestLDAPGenerator_FlatLists(t *testing.T) {
	out, err := NewLDAPGenerator(testCatalog(), Options{LDAPFlatLists: true}).Document([]Entity{ldapEntity()})
	require.NoError(t, err)
	xml := string(out)

	assert.NotContains(t, xml, "<Attributes>")
	assert.NotContains(t, xml, "<UserGroups>")
	assert.Contains(t, xml, "<Attribute>cn</Attribute>")
	assert.Contains(t, xml, "<UserGroup>cn=staff,ou=groups</UserGroup>")
}

func TestLDAPGenerator_Files(t *testing.T) {
	other := spreg.NewServiceProvider("second", spreg.ServiceTypeLDAP)
	files, err := NewLDAPGenerator(testCatalog(), Options{}).Files([]Entity{ldapEntity(), {Provider: other}})
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Contains(t, string(files["ldap.example.org_service.xml"]), `<Entity ID="ldap.example.org/service">`)
	assert.Contains(t, string(files["second.xml"]), `<Entity ID="second">`)
}

func TestLDAPFileName(t *testing.T) {
	assert.Equal(t, "plain.xml", LDAPFileName("plain"))
	assert.Equal(t, "a_b_c.xml", LDAPFileName(`a/b\c`))
	assert.Equal(t, "_._etc.xml", LDAPFileName("../etc"))
}
