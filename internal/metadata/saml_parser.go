package metadata

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/spregistry/spreg/pkg/spreg"
)

// ImportedEntity is a service provider read from SAML metadata, before it
// is applied to a store. Child headers are left empty.
type ImportedEntity struct {
	Provider     *spreg.ServiceProvider
	Certificates []*spreg.Certificate
	Endpoints    []*spreg.Endpoint
	Contacts     []*spreg.Contact
	Attributes   []*spreg.SPAttribute
}

// Children returns the imported children as store records.
func (e *ImportedEntity) Children() []spreg.Child {
	var out []spreg.Child
	for _, c := range e.Certificates {
		out = append(out, c)
	}
	for _, c := range e.Endpoints {
		out = append(out, c)
	}
	for _, c := range e.Contacts {
		out = append(out, c)
	}
	for _, c := range e.Attributes {
		out = append(out, c)
	}
	return out
}

// ParseOptions control how strictly documents are read.
type ParseOptions struct {
	Options

	// DisableChecks accepts endpoint bindings outside the whitelist.
	DisableChecks bool
}

// Parser reads SAML EntityDescriptor elements.
type Parser struct {
	catalog *spreg.AttributeCatalog
	opts    ParseOptions
}

func NewParser(catalog *spreg.AttributeCatalog, opts ParseOptions) *Parser {
	opts.Options = opts.Options.withDefaults()
	return &Parser{catalog: catalog, opts: opts}
}

// ReadDocument parses data and returns its EntityDescriptor elements. The
// root may be an EntityDescriptor or an EntitiesDescriptor, which may nest.
func ReadDocument(data []byte, source string) ([]*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, wrapXMLError(err, source)
	}
	root := doc.Root()
	if root == nil {
		return nil, &MetadataError{Source: source, Message: "document has no root element"}
	}
	switch root.Tag {
	case "EntityDescriptor":
		return []*etree.Element{root}, nil
	case "EntitiesDescriptor":
		return collectEntities(root), nil
	}
	return nil, &MetadataError{
		Source:  source,
		Element: root.Tag,
		Message: "root element must be EntityDescriptor or EntitiesDescriptor",
	}
}

func collectEntities(el *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "EntityDescriptor":
			out = append(out, child)
		case "EntitiesDescriptor":
			out = append(out, collectEntities(child)...)
		}
	}
	return out
}

// EntityID returns the entityID attribute of el.
func EntityID(el *etree.Element) string {
	return strings.TrimSpace(attr(el, "entityID"))
}

// attr returns the value of the attribute key with any prefix.
func attr(el *etree.Element, key string) string {
	for _, a := range el.Attr {
		if a.Key == key && a.Space != "xmlns" {
			return a.Value
		}
	}
	return ""
}

func text(el *etree.Element) string {
	return strings.TrimSpace(el.Text())
}

func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	return s == "true" || s == "1"
}

// entityParse is the state of one EntityDescriptor being read.
type entityParse struct {
	p        *Parser
	entity   *ImportedEntity
	messages *Messages
	err      error

	nameIDPrecedence string
}

func (s *entityParse) sp() *spreg.ServiceProvider { return s.entity.Provider }

func (s *entityParse) warn(format string, args ...interface{}) {
	s.messages.Add(LevelWarning, s.sp().EntityID, format, args...)
}

func (s *entityParse) info(format string, args ...interface{}) {
	s.messages.Add(LevelInfo, s.sp().EntityID, format, args...)
}

func (s *entityParse) debug(format string, args ...interface{}) {
	s.messages.Add(LevelDebug, s.sp().EntityID, format, args...)
}

func (s *entityParse) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

type handler func(*entityParse, *etree.Element)

// dispatch runs the handler registered for each child element of el.
func (s *entityParse) dispatch(el *etree.Element, table map[string]handler) {
	for _, child := range el.ChildElements() {
		if s.err != nil {
			return
		}
		h, ok := table[child.Tag]
		if !ok {
			s.info("unsupported element %s in %s skipped", child.Tag, el.Tag)
			continue
		}
		h(s, child)
	}
}

var (
	entityHandlers       map[string]handler
	spssoHandlers        map[string]handler
	extensionHandlers    map[string]handler
	uiInfoHandlers       map[string]handler
	entityExtensionTable map[string]handler
	entityAttrHandlers   map[string]func(*entityParse, string)
)

func init() {
	entityHandlers = map[string]handler{
		"Extensions":      func(s *entityParse, el *etree.Element) { s.dispatch(el, entityExtensionTable) },
		"SPSSODescriptor": func(s *entityParse, el *etree.Element) { s.dispatch(el, spssoHandlers) },
		"Organization":    (*entityParse).organization,
		"ContactPerson":   (*entityParse).contactPerson,
	}
	entityExtensionTable = map[string]handler{
		"EntityAttributes": (*entityParse).entityAttributes,
	}
	spssoHandlers = map[string]handler{
		"Extensions":                func(s *entityParse, el *etree.Element) { s.dispatch(el, extensionHandlers) },
		"KeyDescriptor":             (*entityParse).keyDescriptor,
		"NameIDFormat":              (*entityParse).nameIDFormat,
		"AssertionConsumerService":  (*entityParse).endpoint,
		"SingleLogoutService":       (*entityParse).endpoint,
		"ArtifactResolutionService": (*entityParse).endpoint,
		"AttributeConsumingService": (*entityParse).attributeConsumingService,
	}
	extensionHandlers = map[string]handler{
		"UIInfo": func(s *entityParse, el *etree.Element) { s.dispatch(el, uiInfoHandlers) },
		"RequestInitiator": func(s *entityParse, el *etree.Element) {
			s.sp().LoginPageURL = strings.TrimSpace(attr(el, "Location"))
		},
		"DiscoveryResponse": func(s *entityParse, el *etree.Element) {
			s.sp().DiscoveryServiceURL = strings.TrimSpace(attr(el, "Location"))
		},
	}
	uiInfoHandlers = map[string]handler{
		"DisplayName":         localizedInto(func(sp *spreg.ServiceProvider) *spreg.Localized { return &sp.Name }),
		"Description":         localizedInto(func(sp *spreg.ServiceProvider) *spreg.Localized { return &sp.Description }),
		"PrivacyStatementURL": localizedInto(func(sp *spreg.ServiceProvider) *spreg.Localized { return &sp.PrivacyPolicyURL }),
	}
	entityAttrHandlers = map[string]func(*entityParse, string){
		AttrAuthnMethods: func(s *entityParse, v string) {
			if v != s.p.opts.MFAContext {
				s.warn("unsupported authentication context %s", v)
				return
			}
			s.sp().ForceMFA = true
		},
		AttrSecurityConfig: func(s *entityParse, v string) {
			if v != SecurityConfigSHA1 {
				s.warn("unsupported security configuration %s", v)
				return
			}
			s.sp().ForceSHA1 = true
		},
		AttrSignAssertions: func(s *entityParse, v string) {
			if v == "true" {
				s.sp().SignAssertions = true
			}
		},
		AttrSignResponses: func(s *entityParse, v string) {
			if v == "false" {
				s.sp().SignResponses = false
			}
		},
		AttrEncryptAssertions: func(s *entityParse, v string) {
			if v == "false" {
				s.sp().EncryptAssertions = false
			}
		},
		AttrNameIDPrecedence: func(s *entityParse, v string) {
			if !slices.Contains(s.p.opts.NameIDFormats, v) {
				s.warn("unsupported NameID format %s", v)
				return
			}
			s.sp().ForceNameIDFormat = true
			s.nameIDPrecedence = v
		},
	}
}

// SupportedElements lists the element names each level of the parser
// understands, keyed by the parent element.
func SupportedElements() map[string][]string {
	keys := func(m map[string]handler) []string {
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	attrs := make([]string, 0, len(entityAttrHandlers))
	for k := range entityAttrHandlers {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)
	return map[string][]string{
		"EntityDescriptor": keys(entityHandlers),
		"Extensions":       keys(entityExtensionTable),
		"EntityAttributes": attrs,
		"SPSSODescriptor":  keys(spssoHandlers),
		"SPExtensions":     keys(extensionHandlers),
		"UIInfo":           keys(uiInfoHandlers),
	}
}

// Parse reads one EntityDescriptor. Element level problems are appended to
// messages. A missing entityID returns spreg.ErrMissingEntityID and a
// malformed certificate spreg.ErrInvalidCertificate; no entity is returned
// in either case.
func (p *Parser) Parse(el *etree.Element, messages *Messages) (*ImportedEntity, error) {
	entityID := EntityID(el)
	if entityID == "" {
		messages.Add(LevelError, "", "EntityDescriptor without entityID skipped")
		return nil, spreg.ErrMissingEntityID
	}

	s := &entityParse{
		p:        p,
		entity:   &ImportedEntity{Provider: spreg.NewServiceProvider(entityID, spreg.ServiceTypeSAML)},
		messages: messages,
	}
	s.dispatch(el, entityHandlers)
	if s.err != nil {
		messages.Add(LevelError, entityID, "%v", s.err)
		return nil, s.err
	}

	if s.nameIDPrecedence != "" {
		sp := s.sp()
		formats := slices.DeleteFunc(sp.NameIDFormats, func(f string) bool { return f == s.nameIDPrecedence })
		sp.NameIDFormats = append([]string{s.nameIDPrecedence}, formats...)
	}
	return s.entity, nil
}

func localizedInto(field func(*spreg.ServiceProvider) *spreg.Localized) handler {
	return func(s *entityParse, el *etree.Element) {
		lang := attr(el, "lang")
		if !field(s.sp()).Set(spreg.Lang(lang), text(el)) {
			s.warn("unsupported language %q in %s", lang, el.Tag)
		}
	}
}

func (s *entityParse) entityAttributes(el *etree.Element) {
	for _, a := range el.ChildElements() {
		if a.Tag != "Attribute" {
			continue
		}
		name := attr(a, "Name")
		h, ok := entityAttrHandlers[name]
		if !ok {
			s.warn("unsupported entity attribute %s", name)
			continue
		}
		for _, v := range a.ChildElements() {
			if v.Tag == "AttributeValue" {
				h(s, text(v))
			}
		}
	}
}

func (s *entityParse) keyDescriptor(el *etree.Element) {
	var signing, encryption bool
	switch use := attr(el, "use"); use {
	case "signing":
		signing = true
	case "encryption":
		encryption = true
	case "":
		signing, encryption = true, true
	default:
		s.warn("unsupported key use %q", use)
		return
	}

	certEl := findDescendant(el, "X509Certificate")
	if certEl == nil {
		s.warn("KeyDescriptor without X509Certificate skipped")
		return
	}
	cert, err := spreg.ParseCertificate(certEl.Text(), signing, encryption)
	if err != nil {
		s.fail(err)
		return
	}
	if DuplicateCertificate(s.entity.Certificates, cert) {
		s.debug("duplicate certificate %s skipped", cert.Fingerprint)
		return
	}
	s.entity.Certificates = append(s.entity.Certificates, cert)
}

func findDescendant(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findDescendant(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func (s *entityParse) nameIDFormat(el *etree.Element) {
	format := text(el)
	if !slices.Contains(s.p.opts.NameIDFormats, format) {
		s.warn("unsupported NameID format %s", format)
		return
	}
	sp := s.sp()
	if slices.Contains(sp.NameIDFormats, format) {
		s.debug("duplicate NameID format %s skipped", format)
		return
	}
	sp.NameIDFormats = append(sp.NameIDFormats, format)
}

func (s *entityParse) endpoint(el *etree.Element) {
	e := &spreg.Endpoint{
		Type:             spreg.EndpointType(el.Tag),
		Binding:          strings.TrimSpace(attr(el, "Binding")),
		Location:         strings.TrimSpace(attr(el, "Location")),
		ResponseLocation: strings.TrimSpace(attr(el, "ResponseLocation")),
		IsDefault:        parseBool(attr(el, "isDefault")),
	}
	if e.Binding == "" || e.Location == "" {
		s.warn("%s without Binding or Location skipped", el.Tag)
		return
	}
	if raw := attr(el, "index"); raw != "" {
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || i < 0 {
			s.warn("%s %s has invalid index %q, skipped", el.Tag, e.Location, raw)
			return
		}
		e.Index = &i
	}
	if !s.p.opts.DisableChecks && !spreg.BindingAllowed(e.Type, e.Binding) {
		s.warn("unsupported binding %s for %s %s", e.Binding, el.Tag, e.Location)
		return
	}
	if DuplicateEndpoint(s.entity.Endpoints, e) {
		s.debug("duplicate %s %s skipped", el.Tag, e.Location)
		return
	}
	s.entity.Endpoints = append(s.entity.Endpoints, e)
}

func (s *entityParse) attributeConsumingService(el *etree.Element) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "ServiceName":
			lang := spreg.Lang(attr(child, "lang"))
			if s.sp().Name.Get(lang) == "" {
				s.sp().Name.Set(lang, text(child))
			}
		case "RequestedAttribute":
			s.requestedAttribute(child)
		}
	}
}

func (s *entityParse) requestedAttribute(el *etree.Element) {
	name, friendly := attr(el, "Name"), attr(el, "FriendlyName")
	a, ok := s.p.catalog.Lookup(name, friendly)
	if !ok {
		s.warn("unknown attribute %s (%s)", name, friendly)
		return
	}
	link := &spreg.SPAttribute{AttributeID: a.ID, Reason: spreg.ImportedAttributeReason}
	if DuplicateAttribute(s.entity.Attributes, link) {
		s.debug("duplicate attribute %s skipped", a.FriendlyName)
		return
	}
	s.entity.Attributes = append(s.entity.Attributes, link)
}

func (s *entityParse) organization(el *etree.Element) {
	org := &s.sp().Organization
	targets := map[string]*spreg.Localized{
		"OrganizationName":        &org.Name,
		"OrganizationDisplayName": &org.DisplayName,
		"OrganizationURL":         &org.URL,
	}
	for _, child := range el.ChildElements() {
		target, ok := targets[child.Tag]
		if !ok {
			continue
		}
		lang := attr(child, "lang")
		if !target.Set(spreg.Lang(lang), text(child)) {
			s.warn("unsupported language %q in %s", lang, child.Tag)
		}
	}
}

func (s *entityParse) contactPerson(el *etree.Element) {
	c := &spreg.Contact{Type: spreg.ContactType(attr(el, "contactType"))}
	if !c.Type.IsValid() {
		s.info("contact of type %q skipped", c.Type)
		return
	}
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "GivenName":
			c.FirstName = text(child)
		case "SurName":
			c.LastName = text(child)
		case "EmailAddress":
			if c.Email == "" {
				c.Email = strings.TrimPrefix(text(child), "mailto:")
			}
		}
	}
	if c.FirstName == "" {
		c.FirstName = " "
	}
	if c.LastName == "" {
		c.LastName = " "
	}
	if DuplicateContact(s.entity.Contacts, c) {
		s.debug("duplicate %s contact %s skipped", c.Type, c.Email)
		return
	}
	s.entity.Contacts = append(s.entity.Contacts, c)
}

// DuplicateCertificate reports whether list already holds c with the same
// usage.
func DuplicateCertificate(list []*spreg.Certificate, c *spreg.Certificate) bool {
	return slices.ContainsFunc(list, func(o *spreg.Certificate) bool {
		return o.Certificate == c.Certificate && o.Signing == c.Signing && o.Encryption == c.Encryption
	})
}

// DuplicateEndpoint reports whether e clashes with an endpoint in list:
// same type and binding with the same location or index, or a second
// default endpoint of the same type.
func DuplicateEndpoint(list []*spreg.Endpoint, e *spreg.Endpoint) bool {
	return slices.ContainsFunc(list, func(o *spreg.Endpoint) bool {
		if o.Type != e.Type {
			return false
		}
		if o.Binding == e.Binding && o.Location == e.Location {
			return true
		}
		if o.Binding == e.Binding && e.Index != nil && o.Index != nil && *o.Index == *e.Index {
			return true
		}
		return e.IsDefault && o.IsDefault
	})
}

// DuplicateContact reports whether list holds the same contact.
func DuplicateContact(list []*spreg.Contact, c *spreg.Contact) bool {
	return slices.ContainsFunc(list, func(o *spreg.Contact) bool {
		return o.Type == c.Type && o.FirstName == c.FirstName && o.LastName == c.LastName && o.Email == c.Email
	})
}

// DuplicateAttribute reports whether list already releases the attribute.
func DuplicateAttribute(list []*spreg.SPAttribute, a *spreg.SPAttribute) bool {
	return slices.ContainsFunc(list, func(o *spreg.SPAttribute) bool { return o.AttributeID == a.AttributeID })
}

// IsEntityError reports whether err fails only the current entity of a
// batch.
func IsEntityError(err error) bool {
	return errors.Is(err, spreg.ErrMissingEntityID)
}

func (e *ImportedEntity) String() string {
	return fmt.Sprintf("%s (%d certificates, %d endpoints, %d contacts, %d attributes)",
		e.Provider.EntityID, len(e.Certificates), len(e.Endpoints), len(e.Contacts), len(e.Attributes))
}
