package metadata

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/spregistry/spreg/pkg/spreg"
)

const xmlProlog = `version="1.0" encoding="UTF-8"`

// SAMLGenerator renders entities as SAML 2.0 metadata.
type SAMLGenerator struct {
	catalog *spreg.AttributeCatalog
	opts    Options
}

func NewSAMLGenerator(catalog *spreg.AttributeCatalog, opts Options) *SAMLGenerator {
	return &SAMLGenerator{catalog: catalog, opts: opts.withDefaults()}
}

// Document renders entities inside one EntitiesDescriptor.
func (g *SAMLGenerator) Document(entities []Entity) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlProlog)
	root := doc.CreateElement("EntitiesDescriptor")
	declareNamespaces(root)
	for _, e := range entities {
		root.AddChild(g.EntityDescriptor(e))
	}
	return write(doc)
}

// EntityDocument renders a single entity with EntityDescriptor as the root.
func (g *SAMLGenerator) EntityDocument(e Entity) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlProlog)
	doc.SetRoot(g.entityDescriptor(e, true))
	return write(doc)
}

func declareNamespaces(root *etree.Element) {
	root.CreateAttr("xmlns", NSMetadata)
	root.CreateAttr("xmlns:ds", NSDSig)
	root.CreateAttr("xmlns:mdui", NSMDUI)
	root.CreateAttr("xmlns:mdattr", NSMDAttr)
	root.CreateAttr("xmlns:saml", NSAssertion)
}

func write(doc *etree.Document) ([]byte, error) {
	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	// Prefixed namespace declarations copied from parsed documents can come
	// back as xmlns:xmlns.
	return bytes.ReplaceAll(out, []byte("xmlns:xmlns"), []byte("xmlns")), nil
}

// EntityDescriptor builds the element for one entity.
func (g *SAMLGenerator) EntityDescriptor(e Entity) *etree.Element {
	return g.entityDescriptor(e, false)
}

func (g *SAMLGenerator) entityDescriptor(e Entity, root bool) *etree.Element {
	sp := e.Provider
	ed := etree.NewElement("EntityDescriptor")
	if root {
		declareNamespaces(ed)
	}
	ed.CreateAttr("entityID", sp.EntityID)

	if attrs := g.entityAttributes(sp); len(attrs) > 0 {
		ea := ed.CreateElement("Extensions").CreateElement("mdattr:EntityAttributes")
		for _, a := range attrs {
			el := ea.CreateElement("saml:Attribute")
			el.CreateAttr("Name", a[0])
			el.CreateAttr("NameFormat", spreg.AttributeNameFormatURI)
			el.CreateElement("saml:AttributeValue").SetText(a[1])
		}
	}

	sso := ed.CreateElement("SPSSODescriptor")
	sso.CreateAttr("protocolSupportEnumeration", ProtocolSupport(e.Children.Endpoints))
	g.spExtensions(sso, sp)
	for _, c := range e.Children.Certificates {
		keyDescriptor(sso, c)
	}
	for _, t := range []spreg.EndpointType{spreg.EndpointARS, spreg.EndpointSLO} {
		endpoints(sso, e.Children.Endpoints, t)
	}
	for _, f := range sp.NameIDFormats {
		sso.CreateElement("NameIDFormat").SetText(f)
	}
	endpoints(sso, e.Children.Endpoints, spreg.EndpointACS)
	g.attributeConsumingService(sso, sp, e.Children.Attributes)

	organization(ed, sp.Organization)
	for _, c := range e.Children.Contacts {
		contactPerson(ed, c)
	}
	return ed
}

// entityAttributes lists the (name, value) pairs for flags that differ from
// the protocol defaults.
func (g *SAMLGenerator) entityAttributes(sp *spreg.ServiceProvider) [][2]string {
	var out [][2]string
	if sp.ForceMFA {
		out = append(out, [2]string{AttrAuthnMethods, g.opts.MFAContext})
	}
	if sp.ForceSHA1 {
		out = append(out, [2]string{AttrSecurityConfig, SecurityConfigSHA1})
	}
	if sp.SignAssertions {
		out = append(out, [2]string{AttrSignAssertions, "true"})
	}
	if !sp.SignResponses {
		out = append(out, [2]string{AttrSignResponses, "false"})
	}
	if !sp.EncryptAssertions {
		out = append(out, [2]string{AttrEncryptAssertions, "false"})
	}
	if sp.ForceNameIDFormat && len(sp.NameIDFormats) > 0 {
		out = append(out, [2]string{AttrNameIDPrecedence, sp.NameIDFormats[0]})
	}
	return out
}

func localized(parent *etree.Element, tag string, values spreg.Localized) {
	for _, lang := range spreg.Languages {
		v := values.Get(lang)
		if v == "" {
			continue
		}
		el := parent.CreateElement(tag)
		el.CreateAttr("xml:lang", string(lang))
		el.SetText(v)
	}
}

func (g *SAMLGenerator) spExtensions(sso *etree.Element, sp *spreg.ServiceProvider) {
	privacy := privacyPolicy(sp, g.opts.PrivacyPolicyFallback)
	hasUI := !sp.Name.IsZero() || !sp.Description.IsZero() || !privacy.IsZero()
	if !hasUI && sp.LoginPageURL == "" && sp.DiscoveryServiceURL == "" {
		return
	}

	ext := sso.CreateElement("Extensions")
	if hasUI {
		ui := ext.CreateElement("mdui:UIInfo")
		localized(ui, "mdui:DisplayName", sp.Name)
		localized(ui, "mdui:Description", sp.Description)
		localized(ui, "mdui:PrivacyStatementURL", privacy)
	}
	if sp.LoginPageURL != "" {
		el := ext.CreateElement("init:RequestInitiator")
		el.CreateAttr("xmlns:init", NSInit)
		el.CreateAttr("Binding", BindingRequestInitiator)
		el.CreateAttr("Location", sp.LoginPageURL)
	}
	if sp.DiscoveryServiceURL != "" {
		el := ext.CreateElement("idpdisc:DiscoveryResponse")
		el.CreateAttr("xmlns:idpdisc", NSIdPDisc)
		el.CreateAttr("Binding", BindingDiscoveryResp)
		el.CreateAttr("Location", sp.DiscoveryServiceURL)
		el.CreateAttr("index", "1")
	}
}

func keyDescriptor(sso *etree.Element, c *spreg.Certificate) {
	kd := sso.CreateElement("KeyDescriptor")
	switch {
	case c.Signing && !c.Encryption:
		kd.CreateAttr("use", "signing")
	case c.Encryption && !c.Signing:
		kd.CreateAttr("use", "encryption")
	}
	kd.CreateElement("ds:KeyInfo").
		CreateElement("ds:X509Data").
		CreateElement("ds:X509Certificate").
		SetText(c.Certificate)
}

func endpoints(sso *etree.Element, list []*spreg.Endpoint, t spreg.EndpointType) {
	for _, e := range list {
		if e.Type != t {
			continue
		}
		el := sso.CreateElement(string(t))
		el.CreateAttr("Binding", e.Binding)
		el.CreateAttr("Location", e.Location)
		if e.ResponseLocation != "" {
			el.CreateAttr("ResponseLocation", e.ResponseLocation)
		}
		if e.Index != nil {
			el.CreateAttr("index", strconv.Itoa(*e.Index))
		}
		if e.IsDefault {
			el.CreateAttr("isDefault", "true")
		}
	}
}

func (g *SAMLGenerator) attributeConsumingService(sso *etree.Element, sp *spreg.ServiceProvider, links []*spreg.SPAttribute) {
	var requested []*spreg.Attribute
	for _, link := range links {
		a, ok := g.catalog.ByID(link.AttributeID)
		if ok && a.PublicSAML {
			requested = append(requested, a)
		}
	}
	if len(requested) == 0 {
		return
	}

	acs := sso.CreateElement("AttributeConsumingService")
	acs.CreateAttr("index", "1")
	localized(acs, "ServiceName", sp.Name)
	for _, a := range requested {
		el := acs.CreateElement("RequestedAttribute")
		if a.FriendlyName != "" {
			el.CreateAttr("FriendlyName", a.FriendlyName)
		}
		el.CreateAttr("Name", a.Name)
		el.CreateAttr("NameFormat", a.Format())
	}
}

func organization(ed *etree.Element, org spreg.Organization) {
	if org.IsZero() {
		return
	}
	el := ed.CreateElement("Organization")
	localized(el, "OrganizationName", org.Name)
	localized(el, "OrganizationDisplayName", org.DisplayName)
	localized(el, "OrganizationURL", org.URL)
}

func contactPerson(ed *etree.Element, c *spreg.Contact) {
	el := ed.CreateElement("ContactPerson")
	el.CreateAttr("contactType", string(c.Type))
	if strings.TrimSpace(c.FirstName) != "" {
		el.CreateElement("GivenName").SetText(c.FirstName)
	}
	if strings.TrimSpace(c.LastName) != "" {
		el.CreateElement("SurName").SetText(c.LastName)
	}
	if c.Email != "" {
		el.CreateElement("EmailAddress").SetText("mailto:" + c.Email)
	}
}
