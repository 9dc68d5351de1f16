package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Register stores sp as version 1 of a new service provider.
func (t *Txn) Register(ctx context.Context, sp *spreg.ServiceProvider) (*spreg.ServiceProvider, error) {
	if sp.EntityID == "" {
		return nil, spreg.ErrMissingEntityID
	}
	if !sp.ServiceType.IsValid() {
		return nil, fmt.Errorf("register %s: unknown service type %q: %w", sp.EntityID, sp.ServiceType, spreg.ErrInvalidMetadata)
	}
	if _, err := t.tx.ServiceProviderByEntityID(ctx, sp.EntityID); err == nil {
		return nil, fmt.Errorf("register %s: %w", sp.EntityID, spreg.ErrDuplicateEntity)
	} else if !errors.Is(err, spreg.ErrNotFound) {
		return nil, err
	}

	n := sp.Clone()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.Version = 1
	n.CreatedAt = t.now
	n.UpdatedAt = t.now
	n.EndAt = nil
	n.Validated = nil
	n.Modified = true
	if err := t.tx.InsertServiceProvider(ctx, n); err != nil {
		return nil, fmt.Errorf("register %s: %w", sp.EntityID, err)
	}
	t.logger.Verbose("registered %s (%s)", n.EntityID, n.ID)
	return n, nil
}

func (t *Txn) active(ctx context.Context, id uuid.UUID) (*spreg.ServiceProvider, error) {
	sp, err := t.tx.ServiceProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sp.Active() {
		return nil, fmt.Errorf("service provider %s has been removed: %w", sp.EntityID, spreg.ErrNotFound)
	}
	return sp, nil
}

// Update applies mutate to a copy of the current version of id and stores
// the result following the history rule:
//
//   - a tracked change to a validated version freezes it and appends a new
//     unvalidated version
//   - a tracked change to an unvalidated version is saved in place and marks
//     it modified
//   - untracked changes are saved in place and leave the validation state alone
//
// mutate cannot change identity or lifecycle fields.
func (t *Txn) Update(ctx context.Context, id uuid.UUID, mutate func(*spreg.ServiceProvider) error) (*spreg.ServiceProvider, error) {
	cur, err := t.active(ctx, id)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Version = cur.Version
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = cur.UpdatedAt
	next.EndAt = nil
	next.Validated = cloneTime(cur.Validated)
	next.Modified = cur.Modified

	changes := spreg.DiffFields(cur, next)
	if len(changes) == 0 {
		return cur, nil
	}
	if next.EntityID == "" {
		return nil, spreg.ErrMissingEntityID
	}
	if next.EntityID != cur.EntityID {
		if _, err := t.tx.ServiceProviderByEntityID(ctx, next.EntityID); err == nil {
			return nil, fmt.Errorf("rename %s to %s: %w", cur.EntityID, next.EntityID, spreg.ErrDuplicateEntity)
		} else if !errors.Is(err, spreg.ErrNotFound) {
			return nil, err
		}
	}

	next.UpdatedAt = t.now
	switch {
	case spreg.HasTrackedChange(changes) && cur.Validated != nil:
		frozen := cur.Clone()
		frozen.EndAt = spreg.TimePtr(t.now)
		next.Version = cur.Version + 1
		next.Validated = nil
		next.Modified = true
		if err := t.tx.AppendVersion(ctx, frozen, next); err != nil {
			return nil, fmt.Errorf("update %s: %w", cur.EntityID, err)
		}
		t.logger.Verbose("%s: version %d frozen, version %d is current", cur.EntityID, frozen.Version, next.Version)
	case spreg.HasTrackedChange(changes):
		next.Modified = true
		if err := t.tx.SaveServiceProvider(ctx, next); err != nil {
			return nil, fmt.Errorf("update %s: %w", cur.EntityID, err)
		}
	default:
		if err := t.tx.SaveServiceProvider(ctx, next); err != nil {
			return nil, fmt.Errorf("update %s: %w", cur.EntityID, err)
		}
	}

	if cur.Production != next.Production {
		t.productionChanged = append(t.productionChanged, next.Clone())
	}
	return next, nil
}

// Validate stamps the current version of id as validated when its
// UpdatedAt equals modifiedDate. Pending children are validated with it and
// ended children that were never validated are dropped.
func (t *Txn) Validate(ctx context.Context, id uuid.UUID, modifiedDate time.Time) (bool, error) {
	cur, err := t.active(ctx, id)
	if err != nil {
		return false, err
	}
	if !cur.UpdatedAt.Equal(modifiedDate.UTC().Truncate(time.Microsecond)) {
		t.logger.Info("%s changed since %s, validation skipped", cur.EntityID, modifiedDate.Format(time.RFC3339Nano))
		return false, nil
	}

	children, err := t.tx.Children(ctx, id, "")
	if err != nil {
		return false, err
	}
	for _, c := range children {
		h := c.Header()
		switch {
		case h.Validated != nil:
			continue
		case h.Active():
			h.Validated = spreg.TimePtr(t.now)
			if err := t.tx.SetChildState(ctx, c); err != nil {
				return false, err
			}
		default:
			if err := t.tx.DeleteChild(ctx, c.Kind(), h.ID); err != nil {
				return false, err
			}
		}
	}

	cur.Validated = spreg.TimePtr(t.now)
	cur.Modified = false
	cur.UpdatedAt = t.now
	if err := t.tx.SaveServiceProvider(ctx, cur); err != nil {
		return false, fmt.Errorf("validate %s: %w", cur.EntityID, err)
	}
	t.logger.Verbose("validated %s version %d", cur.EntityID, cur.Version)
	return true, nil
}

// Delete soft-deletes id. The entity ID becomes available for a new
// registration.
func (t *Txn) Delete(ctx context.Context, id uuid.UUID) error {
	cur, err := t.active(ctx, id)
	if err != nil {
		return err
	}
	cur.EndAt = spreg.TimePtr(t.now)
	cur.UpdatedAt = t.now
	cur.Modified = true
	if err := t.tx.SaveServiceProvider(ctx, cur); err != nil {
		return fmt.Errorf("delete %s: %w", cur.EntityID, err)
	}
	if cur.Production {
		t.productionChanged = append(t.productionChanged, cur.Clone())
	}
	return nil
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}
