package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/spregistry/spreg/internal/logging"
	"github.com/spregistry/spreg/internal/metadata"
	"github.com/spregistry/spreg/internal/registry"
	"github.com/spregistry/spreg/pkg/spreg"
)

// Options control an import run.
type Options struct {
	// Overwrite updates service providers that already exist.
	Overwrite bool

	// Validate validates every imported service provider after it is written.
	Validate bool

	// DisableChecks accepts endpoint bindings outside the whitelist.
	DisableChecks bool

	// Metadata carries the protocol settings shared with the generators.
	Metadata metadata.Options
}

// Outcome is what happened to one entity of a document.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)

// Result summarizes an import run.
type Result struct {
	Messages metadata.Messages
	Entities map[string]Outcome
}

// Count returns how many entities ended with outcome.
func (r *Result) Count(outcome Outcome) int {
	n := 0
	for _, o := range r.Entities {
		if o == outcome {
			n++
		}
	}
	return n
}

type Importer struct {
	registry *registry.Service
	opts     Options
	logger   spreg.Logger
}

func New(reg *registry.Service, opts Options, logger spreg.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Importer{registry: reg, opts: opts, logger: logger}
}

// ImportFile reads path and imports it.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return im.ImportDocument(ctx, data, path)
}

// ImportDocument imports every EntityDescriptor in data. Entities without
// an entityID are reported and skipped. Every entity is parsed before any
// is written, so malformed XML or a malformed certificate stops the run
// with the registry untouched.
func (im *Importer) ImportDocument(ctx context.Context, data []byte, source string) (*Result, error) {
	elements, err := metadata.ReadDocument(data, source)
	if err != nil {
		return nil, err
	}

	catalog, err := im.catalog(ctx)
	if err != nil {
		return nil, err
	}
	parser := metadata.NewParser(catalog, metadata.ParseOptions{
		Options:       im.opts.Metadata,
		DisableChecks: im.opts.DisableChecks,
	})

	res := &Result{Entities: map[string]Outcome{}}
	entities := make([]*metadata.ImportedEntity, 0, len(elements))
	for _, el := range elements {
		entity, err := parser.Parse(el, &res.Messages)
		if err != nil {
			if metadata.IsEntityError(err) {
				continue
			}
			return res, fmt.Errorf("%s: %w", source, err)
		}
		entities = append(entities, entity)
	}

	for _, entity := range entities {
		outcome, msgs, err := im.apply(ctx, entity)
		if err != nil {
			return res, fmt.Errorf("import %s: %w", entity.Provider.EntityID, err)
		}
		res.Messages = append(res.Messages, msgs...)
		res.Entities[entity.Provider.EntityID] = outcome
		im.logger.Verbose("%s: %s", entity, outcome)
	}
	return res, nil
}

func (im *Importer) catalog(ctx context.Context) (*spreg.AttributeCatalog, error) {
	var attrs []*spreg.Attribute
	err := im.registry.Store().View(ctx, func(tx spreg.Tx) error {
		var err error
		attrs, err = tx.Attributes(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load attribute catalog: %w", err)
	}
	return spreg.NewAttributeCatalog(attrs), nil
}

// apply writes one entity in a registry transaction. Messages are
// collected per attempt and only returned for the committed one.
func (im *Importer) apply(ctx context.Context, e *metadata.ImportedEntity) (Outcome, metadata.Messages, error) {
	var (
		outcome Outcome
		msgs    metadata.Messages
	)
	err := im.registry.Do(ctx, func(t *registry.Txn) error {
		msgs = nil
		entityID := e.Provider.EntityID

		existing, err := t.Tx().ServiceProviderByEntityID(ctx, entityID)
		switch {
		case err == nil && existing.ServiceType != spreg.ServiceTypeSAML:
			msgs.Add(metadata.LevelWarning, entityID, "existing %s service provider has the same entity ID, skipped", existing.ServiceType)
			outcome = OutcomeSkipped
			return nil
		case err == nil && !im.opts.Overwrite:
			msgs.Add(metadata.LevelInfo, entityID, "service provider already exists, skipped")
			outcome = OutcomeSkipped
			return nil
		case err == nil:
			outcome = OutcomeUnchanged
			before := existing.UpdatedAt
			updated, err := t.Update(ctx, existing.ID, func(sp *spreg.ServiceProvider) error {
				copyMetadataFields(sp, e.Provider)
				return nil
			})
			if err != nil {
				return err
			}
			if !updated.UpdatedAt.Equal(before) {
				outcome = OutcomeUpdated
			}
			existing = updated
		case errors.Is(err, spreg.ErrNotFound):
			existing, err = t.Register(ctx, e.Provider)
			if err != nil {
				return err
			}
			outcome = OutcomeCreated
		default:
			return err
		}

		added, err := addChildren(ctx, t, existing.ID, e, &msgs)
		if err != nil {
			return err
		}
		if added > 0 && outcome == OutcomeUnchanged {
			outcome = OutcomeUpdated
		}

		if im.opts.Validate {
			return validate(ctx, t, existing.ID)
		}
		return nil
	})
	return outcome, msgs, err
}

// copyMetadataFields copies the fields SAML metadata carries. Registry
// managed fields such as the production flag and admins are kept.
func copyMetadataFields(dst, src *spreg.ServiceProvider) {
	dst.Name = src.Name
	dst.Description = src.Description
	dst.PrivacyPolicyURL = src.PrivacyPolicyURL
	dst.Organization = src.Organization
	dst.SignAssertions = src.SignAssertions
	dst.SignResponses = src.SignResponses
	dst.EncryptAssertions = src.EncryptAssertions
	dst.ForceSHA1 = src.ForceSHA1
	dst.ForceMFA = src.ForceMFA
	dst.ForceNameIDFormat = src.ForceNameIDFormat
	dst.NameIDFormats = append([]string(nil), src.NameIDFormats...)
	dst.LoginPageURL = src.LoginPageURL
	dst.DiscoveryServiceURL = src.DiscoveryServiceURL
}

// addChildren adds the imported children that do not duplicate an active
// child of id and returns how many were added.
func addChildren(ctx context.Context, t *registry.Txn, id uuid.UUID, e *metadata.ImportedEntity, msgs *metadata.Messages) (int, error) {
	list, err := t.Tx().Children(ctx, id, "")
	if err != nil {
		return 0, err
	}
	have := spreg.FilterChildren(list, (*spreg.Record).Active)
	entityID := e.Provider.EntityID

	var pending []spreg.Child
	for _, c := range e.Certificates {
		if metadata.DuplicateCertificate(have.Certificates, c) {
			msgs.Add(metadata.LevelDebug, entityID, "certificate %s already registered", c.CN)
			continue
		}
		have.Certificates = append(have.Certificates, c)
		pending = append(pending, c)
	}
	for _, ep := range e.Endpoints {
		if metadata.DuplicateEndpoint(have.Endpoints, ep) {
			msgs.Add(metadata.LevelDebug, entityID, "%s %s already registered", ep.Type, ep.Location)
			continue
		}
		have.Endpoints = append(have.Endpoints, ep)
		pending = append(pending, ep)
	}
	for _, c := range e.Contacts {
		if metadata.DuplicateContact(have.Contacts, c) {
			msgs.Add(metadata.LevelDebug, entityID, "%s contact %s already registered", c.Type, c.Email)
			continue
		}
		have.Contacts = append(have.Contacts, c)
		pending = append(pending, c)
	}
	for _, a := range e.Attributes {
		if metadata.DuplicateAttribute(have.Attributes, a) {
			msgs.Add(metadata.LevelDebug, entityID, "attribute %s already released", a.AttributeID)
			continue
		}
		have.Attributes = append(have.Attributes, a)
		pending = append(pending, a)
	}

	for _, c := range pending {
		if err := t.AddChild(ctx, id, c.Clone()); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

// validate approves the current version of id unless it is already
// validated and unmodified.
func validate(ctx context.Context, t *registry.Txn, id uuid.UUID) error {
	cur, err := t.Tx().ServiceProvider(ctx, id)
	if err != nil {
		return err
	}
	if cur.Validated != nil && !cur.Modified {
		return nil
	}
	ok, err := t.Validate(ctx, id, cur.UpdatedAt)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("validate %s: %w", cur.EntityID, spreg.ErrConcurrentModification)
	}
	return nil
}
