package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spregistry/spreg/internal/store"
	"github.com/spregistry/spreg/pkg/spreg"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingNotifier struct{ events []*spreg.ServiceProvider }

func (n *recordingNotifier) ProductionChanged(_ context.Context, sp *spreg.ServiceProvider) {
	n.events = append(n.events, sp)
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	clock := &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(store.NewMemoryStore(), append([]Option{WithClock(clock.now)}, opts...)...)
}

func register(t *testing.T, s *Service, entityID string) *spreg.ServiceProvider {
	t.Helper()
	sp := spreg.NewServiceProvider(entityID, spreg.ServiceTypeSAML)
	sp.Name.EN = "Original"
	got, err := s.Register(context.Background(), sp)
	require.NoError(t, err)
	return got
}

func validate(t *testing.T, s *Service, sp *spreg.ServiceProvider) *spreg.ServiceProvider {
	t.Helper()
	ctx := context.Background()
	cur := current(t, s, sp.ID)
	ok, err := s.Validate(ctx, sp.ID, cur.UpdatedAt)
	require.NoError(t, err)
	require.True(t, ok)
	return current(t, s, sp.ID)
}

func current(t *testing.T, s *Service, id uuid.UUID) *spreg.ServiceProvider {
	t.Helper()
	var sp *spreg.ServiceProvider
	require.NoError(t, s.Store().View(context.Background(), func(tx spreg.Tx) error {
		var err error
		sp, err = tx.ServiceProvider(context.Background(), id)
		return err
	}))
	return sp
}

func endpoint(location string) *spreg.Endpoint {
	return &spreg.Endpoint{Type: spreg.EndpointACS, Binding: spreg.BindingHTTPPost, Location: location}
}

func TestRegister(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	sp := register(t, s, "https://sp.example.org")
	assert.Equal(t, 1, sp.Version)
	assert.True(t, sp.Modified)
	assert.Nil(t, sp.Validated)
	assert.Equal(t, sp.CreatedAt, sp.UpdatedAt)

	_, err := s.Register(ctx, spreg.NewServiceProvider("https://sp.example.org", spreg.ServiceTypeOIDC))
	assert.ErrorIs(t, err, spreg.ErrDuplicateEntity)

	_, err = s.Register(ctx, spreg.NewServiceProvider("", spreg.ServiceTypeSAML))
	assert.ErrorIs(t, err, spreg.ErrMissingEntityID)
}

func TestUpdate_TrackedChangeOfValidatedVersionFreezesIt(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://history.example.org")
	require.NoError(t, s.AddChild(ctx, sp.ID, endpoint("https://history.example.org/acs")))
	validated := validate(t, s, sp)

	next, err := s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Name.EN = "Renamed"
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, sp.ID, next.ID)
	assert.Equal(t, 2, next.Version)
	assert.Nil(t, next.Validated)
	assert.True(t, next.Modified)

	revisions, err := s.History(ctx, sp.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	frozen := revisions[0].Provider
	assert.Equal(t, "Original", frozen.Name.EN)
	require.NotNil(t, frozen.EndAt)
	assert.Equal(t, next.UpdatedAt, *frozen.EndAt)
	assert.Equal(t, validated.Validated, frozen.Validated)

	require.Len(t, revisions[1].Changes, 1)
	assert.Equal(t, "name", revisions[1].Changes[0].Field.Name)

	// Children still hang off the stable identity.
	var endpoints []*spreg.Endpoint
	require.NoError(t, s.Store().View(ctx, func(tx spreg.Tx) error {
		var err error
		endpoints, err = spreg.ChildrenOf[*spreg.Endpoint](ctx, tx, next.ID)
		return err
	}))
	assert.Len(t, endpoints, 1)
}

func TestUpdate_UnvalidatedVersionChangesInPlace(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://draft.example.org")

	next, err := s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Description.FI = "Kuvaus"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Version)
	assert.True(t, next.Modified)
	assert.True(t, next.UpdatedAt.After(sp.UpdatedAt))

	revisions, err := s.History(ctx, sp.ID)
	require.NoError(t, err)
	assert.Len(t, revisions, 1)
}

func TestUpdate_UntrackedChangeKeepsValidation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://notes.example.org")
	validated := validate(t, s, sp)

	next, err := s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.AdminNotes = "contacted owner"
		sp.Admins = []string{"alice"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Version)
	assert.False(t, next.Modified)
	assert.Equal(t, validated.Validated, next.Validated)
	assert.Equal(t, "contacted owner", current(t, s, sp.ID).AdminNotes)
}

func TestUpdate_NoChangeIsNoop(t *testing.T) {
	s := newService(t)
	sp := register(t, s, "https://noop.example.org")

	next, err := s.Update(context.Background(), sp.ID, func(sp *spreg.ServiceProvider) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, sp.UpdatedAt, next.UpdatedAt)
}

func TestUpdate_CannotTouchLifecycle(t *testing.T) {
	s := newService(t)
	sp := register(t, s, "https://lifecycle.example.org")

	next, err := s.Update(context.Background(), sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Version = 9
		sp.Validated = spreg.TimePtr(time.Now())
		sp.Test = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Version)
	assert.Nil(t, next.Validated)
	assert.True(t, next.Test)
}

func TestUpdate_MutateErrorRollsBack(t *testing.T) {
	s := newService(t)
	sp := register(t, s, "https://fail.example.org")
	boom := errors.New("boom")

	_, err := s.Update(context.Background(), sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Name.EN = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Original", current(t, s, sp.ID).Name.EN)
}

func TestUpdate_RenameToActiveEntityFails(t *testing.T) {
	s := newService(t)
	register(t, s, "https://taken.example.org")
	sp := register(t, s, "https://free.example.org")

	_, err := s.Update(context.Background(), sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.EntityID = "https://taken.example.org"
		return nil
	})
	assert.ErrorIs(t, err, spreg.ErrDuplicateEntity)
}

func TestUpdate_ProductionFlipNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	s := newService(t, WithNotifier(notifier))
	ctx := context.Background()
	sp := register(t, s, "https://prod.example.org")

	_, err := s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Production = true
		return nil
	})
	require.NoError(t, err)
	_, err = s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Name.FI = "Palvelu"
		return nil
	})
	require.NoError(t, err)

	require.Len(t, notifier.events, 1)
	assert.True(t, notifier.events[0].Production)
	assert.Equal(t, "https://prod.example.org", notifier.events[0].EntityID)
}

func TestUpdate_FailedEditDoesNotNotify(t *testing.T) {
	notifier := &recordingNotifier{}
	s := newService(t, WithNotifier(notifier))
	ctx := context.Background()
	sp := register(t, s, "https://prod-fail.example.org")

	err := s.Do(ctx, func(txn *Txn) error {
		if _, err := txn.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
			sp.Production = true
			return nil
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, notifier.events)
	assert.False(t, current(t, s, sp.ID).Production)
}

func TestValidate_StaleModifiedDate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://stale.example.org")
	shown := sp.UpdatedAt

	_, err := s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Name.SV = "Tjänst"
		return nil
	})
	require.NoError(t, err)

	ok, err := s.Validate(ctx, sp.ID, shown)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, current(t, s, sp.ID).Validated)
}

func TestValidate_StampsChildren(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://children.example.org")
	require.NoError(t, s.AddChild(ctx, sp.ID, endpoint("https://children.example.org/acs")))

	// An ended child that never got validated disappears on validation.
	require.NoError(t, s.Do(ctx, func(txn *Txn) error {
		orphan := &spreg.UserGroup{Record: spreg.NewRecord(sp.ID, txn.Now()), Name: "old"}
		orphan.EndAt = spreg.TimePtr(txn.Now())
		return txn.Tx().InsertChild(ctx, orphan)
	}))

	cur := validate(t, s, sp)
	assert.False(t, cur.Modified)
	require.NotNil(t, cur.Validated)

	require.NoError(t, s.Store().View(ctx, func(tx spreg.Tx) error {
		all, err := tx.Children(ctx, sp.ID, "")
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, cur.Validated, all[0].Header().Validated)
		return nil
	}))
}

func TestRemoveChild(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://remove.example.org")
	validatedEP := endpoint("https://remove.example.org/validated")
	require.NoError(t, s.AddChild(ctx, sp.ID, validatedEP))
	validate(t, s, sp)
	pendingEP := endpoint("https://remove.example.org/pending")
	require.NoError(t, s.AddChild(ctx, sp.ID, pendingEP))

	require.NoError(t, s.RemoveChild(ctx, sp.ID, spreg.KindEndpoint, validatedEP.ID))
	require.NoError(t, s.RemoveChild(ctx, sp.ID, spreg.KindEndpoint, pendingEP.ID))

	require.NoError(t, s.Store().View(ctx, func(tx spreg.Tx) error {
		list, err := spreg.ChildrenOf[*spreg.Endpoint](ctx, tx, sp.ID)
		require.NoError(t, err)
		require.Len(t, list, 1, "the never validated endpoint is deleted")
		assert.Equal(t, validatedEP.ID, list[0].ID)
		assert.NotNil(t, list[0].EndAt)
		return nil
	}))

	err := s.RemoveChild(ctx, sp.ID, spreg.KindEndpoint, validatedEP.ID)
	assert.ErrorIs(t, err, spreg.ErrNotFound)
	assert.True(t, current(t, s, sp.ID).Modified)
}

func TestReplaceChild(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://replace.example.org")
	old := &spreg.Contact{Type: spreg.ContactTechnical, FirstName: "Old", LastName: "Name", Email: "old@example.org"}
	require.NoError(t, s.AddChild(ctx, sp.ID, old))
	validate(t, s, sp)

	repl := &spreg.Contact{Type: spreg.ContactTechnical, FirstName: "New", LastName: "Name", Email: "new@example.org"}
	require.NoError(t, s.ReplaceChild(ctx, sp.ID, old.ID, repl))

	live, err := s.Snapshot(ctx, "https://replace.example.org", false)
	require.NoError(t, err)
	require.Len(t, live.Children.Contacts, 1)
	assert.Equal(t, "New", live.Children.Contacts[0].FirstName)

	published, err := s.Snapshot(ctx, "https://replace.example.org", true)
	require.NoError(t, err)
	require.Len(t, published.Children.Contacts, 1)
	assert.Equal(t, "Old", published.Children.Contacts[0].FirstName)
}

func TestDelete(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://gone.example.org")

	require.NoError(t, s.Delete(ctx, sp.ID))
	_, err := s.Lookup(ctx, "https://gone.example.org")
	assert.ErrorIs(t, err, spreg.ErrNotFound)

	_, err = s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error { return nil })
	assert.ErrorIs(t, err, spreg.ErrNotFound)

	again := register(t, s, "https://gone.example.org")
	assert.NotEqual(t, sp.ID, again.ID)
}
