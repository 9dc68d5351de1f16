package metadata

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/spregistry/spreg/pkg/spreg"
)

// LDAPGenerator renders LDAP service descriptions.
type LDAPGenerator struct {
	catalog *spreg.AttributeCatalog
	opts    Options
}

func NewLDAPGenerator(catalog *spreg.AttributeCatalog, opts Options) *LDAPGenerator {
	return &LDAPGenerator{catalog: catalog, opts: opts.withDefaults()}
}

// Document renders entities inside one LdapEntities element.
func (g *LDAPGenerator) Document(entities []Entity) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlProlog)
	root := doc.CreateElement("LdapEntities")
	for _, e := range entities {
		root.AddChild(g.Entity(e))
	}
	return write(doc)
}

// Files renders one document per entity, keyed by file name.
func (g *LDAPGenerator) Files(entities []Entity) (map[string][]byte, error) {
	out := make(map[string][]byte, len(entities))
	for _, e := range entities {
		data, err := g.Document([]Entity{e})
		if err != nil {
			return nil, err
		}
		out[LDAPFileName(e.Provider.EntityID)] = data
	}
	return out, nil
}

// LDAPFileName returns the per-entity file name for entityID. Path
// separators are replaced so the file stays inside its directory.
func LDAPFileName(entityID string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, entityID)
	if strings.HasPrefix(name, ".") {
		name = "_" + name[1:]
	}
	return name + ".xml"
}

// Entity builds the Entity element for e.
func (g *LDAPGenerator) Entity(e Entity) *etree.Element {
	sp := e.Provider
	el := etree.NewElement("Entity")
	el.CreateAttr("ID", sp.EntityID)
	localized(el, "DisplayName", sp.Name)

	if len(sp.ServerNames) > 0 {
		names := el.CreateElement("ServerNames")
		for _, n := range sp.ServerNames {
			names.CreateElement("ServerName").SetText(n)
		}
	}
	if sp.TargetGroup != "" {
		el.CreateElement("TargetGroup").SetText(sp.TargetGroup)
	}
	boolElement(el, "ServiceAccount", sp.ServiceAccount)
	if sp.ServiceAccountContact != "" {
		el.CreateElement("ServiceAccountContact").SetText(sp.ServiceAccountContact)
	}
	boolElement(el, "LocalStorageUsers", sp.LocalStorageUsers)
	boolElement(el, "LocalStoragePasswords", sp.LocalStoragePasswords)
	if sp.LocalStoragePasswordsInfo != "" {
		el.CreateElement("LocalStoragePasswordsInfo").SetText(sp.LocalStoragePasswordsInfo)
	}
	boolElement(el, "LocalStorageGroups", sp.LocalStorageGroups)
	boolElement(el, "CanAccessAllLdapGroups", sp.CanAccessAllLDAPGroups)

	var attrs []string
	for _, link := range e.Children.Attributes {
		if a, ok := g.catalog.ByID(link.AttributeID); ok && a.PublicLDAP {
			attrs = append(attrs, a.FriendlyName)
		}
	}
	g.list(el, "Attributes", "Attribute", attrs)

	groups := make([]string, 0, len(e.Children.UserGroups))
	for _, ug := range e.Children.UserGroups {
		groups = append(groups, ug.Name)
	}
	g.list(el, "UserGroups", "UserGroup", groups)
	return el
}

func boolElement(parent *etree.Element, tag string, v bool) {
	parent.CreateElement(tag).SetText(strconv.FormatBool(v))
}

// list writes values grouped under a container element, or directly under
// parent when flat lists are configured.
func (g *LDAPGenerator) list(parent *etree.Element, container, tag string, values []string) {
	if len(values) == 0 {
		return
	}
	target := parent
	if !g.opts.LDAPFlatLists {
		target = parent.CreateElement(container)
	}
	for _, v := range values {
		target.CreateElement(tag).SetText(v)
	}
}
