package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Revision is one version of a service provider and the field changes
// that led to it from the previous version.
type Revision struct {
	Provider *spreg.ServiceProvider
	Changes  []spreg.FieldChange
}

// History returns every version of id, oldest first. The first revision
// has no changes.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]Revision, error) {
	var versions []*spreg.ServiceProvider
	err := s.store.View(ctx, func(tx spreg.Tx) error {
		var err error
		versions, err = tx.Versions(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]Revision, len(versions))
	for i, v := range versions {
		out[i].Provider = v
		if i > 0 {
			out[i].Changes = spreg.DiffFields(versions[i-1], v)
		}
	}
	return out, nil
}
