// Package metadata renders service provider snapshots as SAML, LDAP and
// OIDC metadata and parses SAML metadata documents back into service
// provider records.
//
// # Generation
//
// SAMLGenerator builds an EntitiesDescriptor document with one
// EntityDescriptor per entity. Values that equal the protocol defaults are
// left out, so the output stays minimal:
//
//	<EntityDescriptor entityID="https://sp.example.org/shibboleth">
//	  <SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
//	    ...
//	  </SPSSODescriptor>
//	</EntityDescriptor>
//
// LDAPGenerator writes an LdapEntities document, either combined or one
// file per entity. OIDCGenerator writes a JSON array of client
// registrations; a single failing client fails the whole list.
//
// # Parsing
//
// Parser matches elements by local name only, so any namespace prefix is
// accepted. Each nesting level has its own handler table (see
// SupportedElements). Problems that only affect one element are collected
// as Messages and the element is skipped; malformed certificates and a
// missing entityID fail the entity.
package metadata
