package spreg

import (
	"context"

	"github.com/google/uuid"
)

// Store persists versioned service providers, their child records and the
// attribute catalog.
//
// All reads and writes go through a Tx. Update runs fn atomically: in
// PostgreSQL inside one serializable transaction, in memory under a writer
// lock with rollback when fn returns an error.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of operations available inside a store transaction.
// Returned records are copies; mutate them and write them back explicitly.
type Tx interface {
	// ServiceProvider returns the current version of id.
	ServiceProvider(ctx context.Context, id uuid.UUID) (*ServiceProvider, error)

	// ServiceProviderByEntityID returns the active current version using entityID.
	ServiceProviderByEntityID(ctx context.Context, entityID string) (*ServiceProvider, error)

	// ServiceProviders returns current versions matching filter, ordered by entity ID.
	ServiceProviders(ctx context.Context, filter ProviderFilter) ([]*ServiceProvider, error)

	// Versions returns every version of id in ascending order, the current one last.
	Versions(ctx context.Context, id uuid.UUID) ([]*ServiceProvider, error)

	// InsertServiceProvider stores version 1 of a new identity.
	InsertServiceProvider(ctx context.Context, sp *ServiceProvider) error

	// SaveServiceProvider overwrites the current version in place.
	// sp.Version must equal the current version.
	SaveServiceProvider(ctx context.Context, sp *ServiceProvider) error

	// AppendVersion freezes the current version as frozen and makes next
	// the new current version. frozen.Version must equal the current
	// version and next.Version must be one greater.
	AppendVersion(ctx context.Context, frozen, next *ServiceProvider) error

	// Children returns the child records of spID in insertion order.
	// An empty kind returns every kind.
	Children(ctx context.Context, spID uuid.UUID, kind ChildKind) ([]Child, error)

	InsertChild(ctx context.Context, c Child) error

	// SetChildState persists the Validated and EndAt fields of c.
	SetChildState(ctx context.Context, c Child) error

	DeleteChild(ctx context.Context, kind ChildKind, id uuid.UUID) error

	Attributes(ctx context.Context) ([]*Attribute, error)
	InsertAttribute(ctx context.Context, a *Attribute) error
}

// ChildrenOf returns the children of spID with the concrete type T.
func ChildrenOf[T Child](ctx context.Context, tx Tx, spID uuid.UUID) ([]T, error) {
	var zero T
	list, err := tx.Children(ctx, spID, zero.Kind())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(list))
	for _, c := range list {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out, nil
}
