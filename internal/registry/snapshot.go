package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Snapshot is a service provider version together with the children that
// belong to the same view.
type Snapshot struct {
	Provider *spreg.ServiceProvider
	Children spreg.Children

	// Point is the validation time the view was reconstructed at. It is nil
	// for live snapshots.
	Point *time.Time
}

// Resolve builds the view of cur to publish. With validated set it returns
// the latest validated version of cur and the children visible at that
// version's validation time, or nil when cur was never validated. Without
// it, it returns cur and its active children.
func Resolve(ctx context.Context, tx spreg.Tx, cur *spreg.ServiceProvider, validated bool) (*Snapshot, error) {
	children, err := tx.Children(ctx, cur.ID, "")
	if err != nil {
		return nil, err
	}
	if !validated {
		return &Snapshot{
			Provider: cur,
			Children: spreg.FilterChildren(children, (*spreg.Record).Active),
		}, nil
	}

	render := cur
	if cur.Validated == nil {
		render, err = lastValidated(ctx, tx, cur.ID)
		if err != nil || render == nil {
			return nil, err
		}
	}
	point := *render.Validated
	return &Snapshot{
		Provider: render,
		Children: spreg.FilterChildren(children, func(r *spreg.Record) bool { return r.VisibleAt(point) }),
		Point:    &point,
	}, nil
}

// lastValidated returns the newest historical version of id that was
// validated, or nil.
func lastValidated(ctx context.Context, tx spreg.Tx, id uuid.UUID) (*spreg.ServiceProvider, error) {
	versions, err := tx.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := len(versions) - 2; i >= 0; i-- {
		if versions[i].Validated != nil {
			return versions[i], nil
		}
	}
	return nil, nil
}

// Snapshot resolves the active service provider with entityID.
// It returns nil without error when validated is set and the entity has no
// validated version.
func (s *Service) Snapshot(ctx context.Context, entityID string, validated bool) (*Snapshot, error) {
	var out *Snapshot
	err := s.store.View(ctx, func(tx spreg.Tx) error {
		cur, err := tx.ServiceProviderByEntityID(ctx, entityID)
		if err != nil {
			return err
		}
		out, err = Resolve(ctx, tx, cur, validated)
		return err
	})
	return out, err
}

// Snapshots resolves every active service provider matching filter, in
// entity ID order. Entities without a validated version are skipped when
// validated is set.
func (s *Service) Snapshots(ctx context.Context, filter spreg.ProviderFilter, validated bool) ([]*Snapshot, error) {
	filter.IncludeEnded = false
	var out []*Snapshot
	err := s.store.View(ctx, func(tx spreg.Tx) error {
		out = nil
		list, err := tx.ServiceProviders(ctx, filter)
		if err != nil {
			return err
		}
		for _, cur := range list {
			snap, err := Resolve(ctx, tx, cur, validated)
			if err != nil {
				return err
			}
			if snap == nil {
				s.logger.Verbose("%s has no validated version, skipped", cur.EntityID)
				continue
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}
