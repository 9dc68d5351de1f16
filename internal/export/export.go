// Package export renders registry contents as SAML, LDAP or OIDC metadata.
package export

import (
	"context"
	"fmt"
	"slices"

	"github.com/spregistry/spreg/internal/logging"
	"github.com/spregistry/spreg/internal/metadata"
	"github.com/spregistry/spreg/internal/registry"
	"github.com/spregistry/spreg/pkg/spreg"
)

// Format is an output format. Each format renders one service type.
type Format string

const (
	FormatSAML Format = "saml"
	FormatLDAP Format = "ldap"
	FormatOIDC Format = "oidc"
)

// ParseFormat converts a command-line value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatSAML, FormatLDAP, FormatOIDC:
		return f, nil
	}
	return "", fmt.Errorf("unknown metadata format %q: %w", s, spreg.ErrInvalidConfig)
}

// ServiceType returns the service type rendered by f.
func (f Format) ServiceType() spreg.ServiceType {
	return spreg.ServiceType(f)
}

// Selection chooses the service providers of a list.
type Selection struct {
	// Validated renders the latest validated view instead of the live one.
	Validated bool

	// Production and Test keep only providers with the flag set. Flags are
	// read from the resolved view.
	Production bool
	Test       bool

	// EntityIDs is an include-list. Empty selects every provider.
	EntityIDs []string
}

func (s Selection) match(sp *spreg.ServiceProvider) bool {
	if s.Production && !sp.Production {
		return false
	}
	if s.Test && !sp.Test {
		return false
	}
	return len(s.EntityIDs) == 0 || slices.Contains(s.EntityIDs, sp.EntityID)
}

// Options configure the generators.
type Options struct {
	Metadata   metadata.Options
	SecretMode metadata.SecretMode
	Decrypter  metadata.Decrypter
}

type Exporter struct {
	registry *registry.Service
	opts     Options
	logger   spreg.Logger
}

func New(reg *registry.Service, opts Options, logger spreg.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Exporter{registry: reg, opts: opts, logger: logger}
}

// Entities resolves the providers of serviceType chosen by sel, together
// with the attribute catalog, from one consistent read.
func (x *Exporter) Entities(ctx context.Context, serviceType spreg.ServiceType, sel Selection) ([]metadata.Entity, *spreg.AttributeCatalog, error) {
	var (
		entities []metadata.Entity
		catalog  *spreg.AttributeCatalog
	)
	err := x.registry.Store().View(ctx, func(tx spreg.Tx) error {
		entities = nil
		attrs, err := tx.Attributes(ctx)
		if err != nil {
			return err
		}
		catalog = spreg.NewAttributeCatalog(attrs)

		list, err := tx.ServiceProviders(ctx, spreg.ProviderFilter{ServiceType: serviceType, EntityIDs: sel.EntityIDs})
		if err != nil {
			return err
		}
		for _, cur := range list {
			snap, err := registry.Resolve(ctx, tx, cur, sel.Validated)
			if err != nil {
				return err
			}
			if snap == nil {
				x.logger.Verbose("%s has no validated version, skipped", cur.EntityID)
				continue
			}
			if !sel.match(snap.Provider) {
				continue
			}
			entities = append(entities, metadata.Entity{Provider: snap.Provider, Children: snap.Children})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load %s service providers: %w", serviceType, err)
	}
	return entities, catalog, nil
}

// Generate renders the list document of format.
func (x *Exporter) Generate(ctx context.Context, format Format, sel Selection) ([]byte, error) {
	entities, catalog, err := x.Entities(ctx, format.ServiceType(), sel)
	if err != nil {
		return nil, err
	}
	x.logger.Verbose("rendering %d %s service providers", len(entities), format)
	return x.render(format, catalog, entities)
}

// Entity renders the document of a single provider. It returns
// spreg.ErrNotFound when the provider does not exist or has no view to
// render.
func (x *Exporter) Entity(ctx context.Context, format Format, entityID string, validated bool) ([]byte, error) {
	entities, catalog, err := x.Entities(ctx, format.ServiceType(), Selection{Validated: validated, EntityIDs: []string{entityID}})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%s service provider %s: %w", format, entityID, spreg.ErrNotFound)
	}
	if format == FormatSAML {
		return metadata.NewSAMLGenerator(catalog, x.opts.Metadata).EntityDocument(entities[0])
	}
	return x.render(format, catalog, entities)
}

// LDAPFiles renders one LDAP document per provider, keyed by file name.
func (x *Exporter) LDAPFiles(ctx context.Context, sel Selection) (map[string][]byte, error) {
	entities, catalog, err := x.Entities(ctx, spreg.ServiceTypeLDAP, sel)
	if err != nil {
		return nil, err
	}
	return metadata.NewLDAPGenerator(catalog, x.opts.Metadata).Files(entities)
}

func (x *Exporter) render(format Format, catalog *spreg.AttributeCatalog, entities []metadata.Entity) ([]byte, error) {
	switch format {
	case FormatSAML:
		return metadata.NewSAMLGenerator(catalog, x.opts.Metadata).Document(entities)
	case FormatLDAP:
		return metadata.NewLDAPGenerator(catalog, x.opts.Metadata).Document(entities)
	case FormatOIDC:
		return metadata.NewOIDCGenerator(catalog, x.opts.Metadata, x.opts.SecretMode, x.opts.Decrypter).Document(entities)
	}
	return nil, fmt.Errorf("unknown metadata format %q: %w", format, spreg.ErrInvalidConfig)
}
