package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spregistry/spreg/pkg/spreg"
)

// touch records a child edit on the live version.
func (t *Txn) touch(ctx context.Context, sp *spreg.ServiceProvider) error {
	sp.UpdatedAt = t.now
	sp.Modified = true
	return t.tx.SaveServiceProvider(ctx, sp)
}

// AddChild attaches a new, unvalidated child to id.
func (t *Txn) AddChild(ctx context.Context, id uuid.UUID, c spreg.Child) error {
	sp, err := t.active(ctx, id)
	if err != nil {
		return err
	}
	if err := t.insertChild(ctx, sp.ID, c); err != nil {
		return err
	}
	return t.touch(ctx, sp)
}

func (t *Txn) insertChild(ctx context.Context, spID uuid.UUID, c spreg.Child) error {
	h := c.Header()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	h.SPID = spID
	h.CreatedAt = t.now
	h.Validated = nil
	h.EndAt = nil
	if err := t.tx.InsertChild(ctx, c); err != nil {
		return fmt.Errorf("add %s: %w", c.Kind(), err)
	}
	return nil
}

func (t *Txn) findChild(ctx context.Context, spID uuid.UUID, kind spreg.ChildKind, childID uuid.UUID) (spreg.Child, error) {
	list, err := t.tx.Children(ctx, spID, kind)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		if c.Header().ID == childID && c.Header().Active() {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", kind, childID, spreg.ErrNotFound)
}

// end removes c from the live view. Validated children stay in the store
// with an end date so older validated views can still show them.
func (t *Txn) end(ctx context.Context, c spreg.Child) error {
	h := c.Header()
	if h.Validated == nil {
		return t.tx.DeleteChild(ctx, c.Kind(), h.ID)
	}
	h.EndAt = spreg.TimePtr(t.now)
	return t.tx.SetChildState(ctx, c)
}

// RemoveChild ends the active child childID of id.
func (t *Txn) RemoveChild(ctx context.Context, id uuid.UUID, kind spreg.ChildKind, childID uuid.UUID) error {
	sp, err := t.active(ctx, id)
	if err != nil {
		return err
	}
	c, err := t.findChild(ctx, sp.ID, kind, childID)
	if err != nil {
		return err
	}
	if err := t.end(ctx, c); err != nil {
		return fmt.Errorf("remove %s: %w", kind, err)
	}
	return t.touch(ctx, sp)
}

// ReplaceChild ends oldID and adds c in its place. Child content is
// immutable, so every edit is a replacement.
func (t *Txn) ReplaceChild(ctx context.Context, id uuid.UUID, oldID uuid.UUID, c spreg.Child) error {
	sp, err := t.active(ctx, id)
	if err != nil {
		return err
	}
	old, err := t.findChild(ctx, sp.ID, c.Kind(), oldID)
	if err != nil {
		return err
	}
	if err := t.end(ctx, old); err != nil {
		return fmt.Errorf("replace %s: %w", c.Kind(), err)
	}
	if err := t.insertChild(ctx, sp.ID, c); err != nil {
		return err
	}
	return t.touch(ctx, sp)
}
