package spreg

import (
	"time"

	"github.com/google/uuid"
)

// ChildKind names a child record table.
type ChildKind string

const (
	KindCertificate ChildKind = "certificate"
	KindEndpoint    ChildKind = "endpoint"
	KindContact     ChildKind = "contact"
	KindRedirectURI ChildKind = "redirect_uri"
	KindUserGroup   ChildKind = "usergroup"
	KindAttribute   ChildKind = "attribute"
)

// ChildKinds lists every child kind.
var ChildKinds = []ChildKind{KindCertificate, KindEndpoint, KindContact, KindRedirectURI, KindUserGroup, KindAttribute}

// Record is the lifecycle header shared by child records. Child content is
// immutable once stored; only Validated and EndAt change afterwards.
type Record struct {
	ID        uuid.UUID  `json:"id"`
	SPID      uuid.UUID  `json:"sp_id"`
	CreatedAt time.Time  `json:"created_at"`
	Validated *time.Time `json:"validated,omitempty"`
	EndAt     *time.Time `json:"end_at,omitempty"`
}

// Header returns the record itself so embedding types satisfy Child.
func (r *Record) Header() *Record { return r }

// Active reports whether the record has not been end-dated.
func (r *Record) Active() bool { return r.EndAt == nil }

// VisibleAt reports whether the record belongs to a validated view whose
// validation point is point.
func (r *Record) VisibleAt(point time.Time) bool {
	return r.Validated != nil && (r.EndAt == nil || r.EndAt.After(point))
}

func (r Record) clone() Record {
	r.Validated = cloneTime(r.Validated)
	r.EndAt = cloneTime(r.EndAt)
	return r
}

// Child is implemented by every record attached to a service provider.
type Child interface {
	Kind() ChildKind
	Header() *Record
	Clone() Child
}

// NewChild returns an empty child of kind, used when decoding stored rows.
func NewChild(kind ChildKind) (Child, bool) {
	switch kind {
	case KindCertificate:
		return &Certificate{}, true
	case KindEndpoint:
		return &Endpoint{}, true
	case KindContact:
		return &Contact{}, true
	case KindRedirectURI:
		return &RedirectURI{}, true
	case KindUserGroup:
		return &UserGroup{}, true
	case KindAttribute:
		return &SPAttribute{}, true
	}
	return nil, false
}

// Certificate is an X.509 certificate published in KeyDescriptor elements.
type Certificate struct {
	Record
	Certificate string    `json:"certificate"`
	Signing     bool      `json:"signing"`
	Encryption  bool      `json:"encryption"`
	CN          string    `json:"cn,omitempty"`
	Issuer      string    `json:"issuer,omitempty"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidUntil  time.Time `json:"valid_until"`
	KeySize     int       `json:"key_size,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

func (*Certificate) Kind() ChildKind { return KindCertificate }

func (c *Certificate) Clone() Child {
	n := *c
	n.Record = c.Record.clone()
	return &n
}

// EndpointType is the SAML element name of an endpoint.
type EndpointType string

const (
	EndpointACS EndpointType = "AssertionConsumerService"
	EndpointSLO EndpointType = "SingleLogoutService"
	EndpointARS EndpointType = "ArtifactResolutionService"
)

// Endpoint is a SAML service endpoint.
type Endpoint struct {
	Record
	Type             EndpointType `json:"type"`
	Binding          string       `json:"binding"`
	Location         string       `json:"location"`
	ResponseLocation string       `json:"response_location,omitempty"`
	Index            *int         `json:"index,omitempty"`
	IsDefault        bool         `json:"is_default"`
}

func (*Endpoint) Kind() ChildKind { return KindEndpoint }

func (e *Endpoint) Clone() Child {
	n := *e
	n.Record = e.Record.clone()
	if e.Index != nil {
		i := *e.Index
		n.Index = &i
	}
	return &n
}

// ContactType is a published contact role.
type ContactType string

const (
	ContactAdministrative ContactType = "administrative"
	ContactTechnical      ContactType = "technical"
	ContactSupport        ContactType = "support"
)

// IsValid reports whether t is a contact role the registry publishes.
func (t ContactType) IsValid() bool {
	switch t {
	case ContactAdministrative, ContactTechnical, ContactSupport:
		return true
	}
	return false
}

// Contact is a ContactPerson entry.
type Contact struct {
	Record
	Type      ContactType `json:"type"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
}

func (*Contact) Kind() ChildKind { return KindContact }

func (c *Contact) Clone() Child {
	n := *c
	n.Record = c.Record.clone()
	return &n
}

// RedirectURI is an OIDC redirect URI.
type RedirectURI struct {
	Record
	URI string `json:"uri"`
}

func (*RedirectURI) Kind() ChildKind { return KindRedirectURI }

func (r *RedirectURI) Clone() Child {
	n := *r
	n.Record = r.Record.clone()
	return &n
}

// UserGroup is an LDAP group the service may read.
type UserGroup struct {
	Record
	Name string `json:"name"`
}

func (*UserGroup) Kind() ChildKind { return KindUserGroup }

func (g *UserGroup) Clone() Child {
	n := *g
	n.Record = g.Record.clone()
	return &n
}

// SPAttribute links a catalog attribute to a service provider.
type SPAttribute struct {
	Record
	AttributeID  uuid.UUID `json:"attribute_id"`
	Reason       string    `json:"reason"`
	OIDCUserinfo bool      `json:"oidc_userinfo"`
	OIDCIDToken  bool      `json:"oidc_id_token"`
}

func (*SPAttribute) Kind() ChildKind { return KindAttribute }

func (a *SPAttribute) Clone() Child {
	n := *a
	n.Record = a.Record.clone()
	return &n
}

// NewRecord returns a fresh header for a child of sp.
func NewRecord(spID uuid.UUID, now time.Time) Record {
	return Record{ID: uuid.New(), SPID: spID, CreatedAt: now}
}

// Children groups the child records of one service provider by kind.
type Children struct {
	Certificates []*Certificate
	Endpoints    []*Endpoint
	Contacts     []*Contact
	RedirectURIs []*RedirectURI
	UserGroups   []*UserGroup
	Attributes   []*SPAttribute
}

// Add appends c to the slice for its kind.
func (c *Children) Add(child Child) {
	switch v := child.(type) {
	case *Certificate:
		c.Certificates = append(c.Certificates, v)
	case *Endpoint:
		c.Endpoints = append(c.Endpoints, v)
	case *Contact:
		c.Contacts = append(c.Contacts, v)
	case *RedirectURI:
		c.RedirectURIs = append(c.RedirectURIs, v)
	case *UserGroup:
		c.UserGroups = append(c.UserGroups, v)
	case *SPAttribute:
		c.Attributes = append(c.Attributes, v)
	}
}

// GroupChildren sorts children by kind, keeping their relative order.
func GroupChildren(list []Child) Children {
	var c Children
	for _, child := range list {
		c.Add(child)
	}
	return c
}

// FilterChildren returns the children for which keep returns true, grouped by kind.
func FilterChildren(list []Child, keep func(*Record) bool) Children {
	var c Children
	for _, child := range list {
		if keep(child.Header()) {
			c.Add(child)
		}
	}
	return c
}
