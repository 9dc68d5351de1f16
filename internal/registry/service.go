package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spregistry/spreg/internal/logging"
	"github.com/spregistry/spreg/pkg/spreg"
)

// Service applies registry operations to a store.
type Service struct {
	store    spreg.Store
	notifier Notifier
	logger   spreg.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(l spreg.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces the wall clock. Returned times are truncated to
// microseconds, the precision PostgreSQL stores.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store spreg.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: nopNotifier{},
		logger:   logging.NewNullLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Store() spreg.Store { return s.store }

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Do runs fn in one store transaction. fn may run more than once when the
// store retries a serialization failure; notifications are delivered once,
// after the successful attempt committed.
func (s *Service) Do(ctx context.Context, fn func(*Txn) error) error {
	var last *Txn
	err := s.store.Update(ctx, func(tx spreg.Tx) error {
		last = &Txn{tx: tx, now: s.timestamp(), logger: s.logger}
		return fn(last)
	})
	if err != nil {
		return err
	}
	for _, sp := range last.productionChanged {
		s.notifier.ProductionChanged(ctx, sp)
	}
	return nil
}

// Txn is a registry operation scope bound to one store transaction. All
// writes made through it share the same timestamp.
type Txn struct {
	tx     spreg.Tx
	now    time.Time
	logger spreg.Logger

	productionChanged []*spreg.ServiceProvider
}

// Tx exposes the underlying store transaction for reads.
func (t *Txn) Tx() spreg.Tx { return t.tx }

// Now returns the timestamp shared by the writes of this transaction.
func (t *Txn) Now() time.Time { return t.now }

func (s *Service) Register(ctx context.Context, sp *spreg.ServiceProvider) (*spreg.ServiceProvider, error) {
	var out *spreg.ServiceProvider
	err := s.Do(ctx, func(t *Txn) error {
		var err error
		out, err = t.Register(ctx, sp)
		return err
	})
	return out, err
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, mutate func(*spreg.ServiceProvider) error) (*spreg.ServiceProvider, error) {
	var out *spreg.ServiceProvider
	err := s.Do(ctx, func(t *Txn) error {
		var err error
		out, err = t.Update(ctx, id, mutate)
		return err
	})
	return out, err
}

// Validate approves the current version of id if it was last updated at
// modifiedDate. It reports false without error when the record changed in
// the meantime.
func (s *Service) Validate(ctx context.Context, id uuid.UUID, modifiedDate time.Time) (bool, error) {
	var ok bool
	err := s.Do(ctx, func(t *Txn) error {
		var err error
		ok, err = t.Validate(ctx, id, modifiedDate)
		return err
	})
	return ok, err
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.Do(ctx, func(t *Txn) error {
		return t.Delete(ctx, id)
	})
}

func (s *Service) AddChild(ctx context.Context, id uuid.UUID, c spreg.Child) error {
	return s.Do(ctx, func(t *Txn) error {
		return t.AddChild(ctx, id, c)
	})
}

func (s *Service) RemoveChild(ctx context.Context, id uuid.UUID, kind spreg.ChildKind, childID uuid.UUID) error {
	return s.Do(ctx, func(t *Txn) error {
		return t.RemoveChild(ctx, id, kind, childID)
	})
}

func (s *Service) ReplaceChild(ctx context.Context, id uuid.UUID, oldID uuid.UUID, c spreg.Child) error {
	return s.Do(ctx, func(t *Txn) error {
		return t.ReplaceChild(ctx, id, oldID, c)
	})
}

// Lookup returns the active current version of entityID.
func (s *Service) Lookup(ctx context.Context, entityID string) (*spreg.ServiceProvider, error) {
	var out *spreg.ServiceProvider
	err := s.store.View(ctx, func(tx spreg.Tx) error {
		var err error
		out, err = tx.ServiceProviderByEntityID(ctx, entityID)
		return err
	})
	return out, err
}
