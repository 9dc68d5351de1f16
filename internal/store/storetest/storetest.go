// Package storetest holds the behaviour every spreg.Store implementation
// must share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) spreg.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s spreg.Store)
	}{
		{"InsertAndRead", testInsertAndRead},
		{"DuplicateActiveEntity", testDuplicateActiveEntity},
		{"EndedEntityFreesEntityID", testEndedEntityFreesEntityID},
		{"SaveRequiresCurrentVersion", testSaveRequiresCurrentVersion},
		{"AppendVersionKeepsHistory", testAppendVersionKeepsHistory},
		{"ChildrenKeepInsertionOrder", testChildrenKeepInsertionOrder},
		{"ChildStateAndDelete", testChildStateAndDelete},
		{"ListFilter", testListFilter},
		{"RollbackOnError", testRollbackOnError},
		{"Attributes", testAttributes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newSP(entityID string) *spreg.ServiceProvider {
	sp := spreg.NewServiceProvider(entityID, spreg.ServiceTypeSAML)
	ts := now()
	sp.CreatedAt = ts
	sp.UpdatedAt = ts
	sp.Name.EN = "Service " + entityID
	sp.NameIDFormats = []string{spreg.NameIDTransient}
	return sp
}

func insert(t *testing.T, s spreg.Store, sp *spreg.ServiceProvider) {
	t.Helper()
	err := s.Update(context.Background(), func(tx spreg.Tx) error {
		return tx.InsertServiceProvider(context.Background(), sp)
	})
	require.NoError(t, err)
}

func insertChild(t *testing.T, s spreg.Store, c spreg.Child) {
	t.Helper()
	err := s.Update(context.Background(), func(tx spreg.Tx) error {
		return tx.InsertChild(context.Background(), c)
	})
	require.NoError(t, err)
}

func current(t *testing.T, s spreg.Store, id uuid.UUID) *spreg.ServiceProvider {
	t.Helper()
	var sp *spreg.ServiceProvider
	err := s.View(context.Background(), func(tx spreg.Tx) error {
		var err error
		sp, err = tx.ServiceProvider(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return sp
}

func testInsertAndRead(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	sp := newSP("https://sp.example.org/shibboleth")
	insert(t, s, sp)

	got := current(t, s, sp.ID)
	assert.Equal(t, sp.EntityID, got.EntityID)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "Service https://sp.example.org/shibboleth", got.Name.EN)
	assert.Equal(t, []string{spreg.NameIDTransient}, got.NameIDFormats)
	assert.True(t, got.CreatedAt.Equal(sp.CreatedAt))
	assert.True(t, got.SignResponses)

	err := s.View(ctx, func(tx spreg.Tx) error {
		byEntity, err := tx.ServiceProviderByEntityID(ctx, sp.EntityID)
		require.NoError(t, err)
		assert.Equal(t, sp.ID, byEntity.ID)

		_, err = tx.ServiceProviderByEntityID(ctx, "https://missing.example.org")
		assert.ErrorIs(t, err, spreg.ErrNotFound)

		_, err = tx.ServiceProvider(ctx, uuid.New())
		assert.ErrorIs(t, err, spreg.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func testDuplicateActiveEntity(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	insert(t, s, newSP("https://dup.example.org"))

	err := s.Update(ctx, func(tx spreg.Tx) error {
		return tx.InsertServiceProvider(ctx, newSP("https://dup.example.org"))
	})
	assert.ErrorIs(t, err, spreg.ErrDuplicateEntity)
}

func testEndedEntityFreesEntityID(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	old := newSP("https://reused.example.org")
	insert(t, s, old)

	ended := current(t, s, old.ID)
	ended.EndAt = spreg.TimePtr(now())
	require.NoError(t, s.Update(ctx, func(tx spreg.Tx) error {
		return tx.SaveServiceProvider(ctx, ended)
	}))

	replacement := newSP("https://reused.example.org")
	insert(t, s, replacement)

	err := s.View(ctx, func(tx spreg.Tx) error {
		got, err := tx.ServiceProviderByEntityID(ctx, "https://reused.example.org")
		require.NoError(t, err)
		assert.Equal(t, replacement.ID, got.ID)
		return nil
	})
	require.NoError(t, err)
}

func testSaveRequiresCurrentVersion(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	sp := newSP("https://cas.example.org")
	insert(t, s, sp)

	stale := sp.Clone()
	stale.Version = 7
	err := s.Update(ctx, func(tx spreg.Tx) error {
		return tx.SaveServiceProvider(ctx, stale)
	})
	assert.Error(t, err)

	cur := current(t, s, sp.ID)
	cur.Description.EN = "changed"
	require.NoError(t, s.Update(ctx, func(tx spreg.Tx) error {
		return tx.SaveServiceProvider(ctx, cur)
	}))
	assert.Equal(t, "changed", current(t, s, sp.ID).Description.EN)
}

func testAppendVersionKeepsHistory(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	sp := newSP("https://history.example.org")
	validated := now()
	sp.Validated = &validated
	insert(t, s, sp)

	frozen := current(t, s, sp.ID)
	frozen.EndAt = spreg.TimePtr(now())
	next := frozen.Clone()
	next.Version = 2
	next.EndAt = nil
	next.Validated = nil
	next.Modified = true
	next.Name.EN = "Renamed"

	require.NoError(t, s.Update(ctx, func(tx spreg.Tx) error {
		return tx.AppendVersion(ctx, frozen, next)
	}))

	cur := current(t, s, sp.ID)
	assert.Equal(t, 2, cur.Version)
	assert.Equal(t, "Renamed", cur.Name.EN)
	assert.Nil(t, cur.Validated)
	assert.True(t, cur.Modified)
	assert.Nil(t, cur.EndAt)

	err := s.View(ctx, func(tx spreg.Tx) error {
		versions, err := tx.Versions(ctx, sp.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 1, versions[0].Version)
		assert.NotNil(t, versions[0].EndAt)
		require.NotNil(t, versions[0].Validated)
		assert.True(t, versions[0].Validated.Equal(validated))
		assert.Equal(t, 2, versions[1].Version)

		// The historical version is frozen and no longer addressable for saves.
		return nil
	})
	require.NoError(t, err)

	err = s.Update(ctx, func(tx spreg.Tx) error {
		return tx.SaveServiceProvider(ctx, frozen)
	})
	assert.Error(t, err)

	bad := cur.Clone()
	bad.Version = 5
	err = s.Update(ctx, func(tx spreg.Tx) error {
		return tx.AppendVersion(ctx, cur, bad)
	})
	assert.Error(t, err)
}

func testChildrenKeepInsertionOrder(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	sp := newSP("https://children.example.org")
	insert(t, s, sp)

	ts := now()
	index := 1
	endpoints := []*spreg.Endpoint{
		{Record: spreg.NewRecord(sp.ID, ts), Type: spreg.EndpointACS, Binding: spreg.BindingHTTPPost, Location: "https://children.example.org/b", Index: &index, IsDefault: true},
		{Record: spreg.NewRecord(sp.ID, ts), Type: spreg.EndpointACS, Binding: spreg.BindingHTTPArtifact, Location: "https://children.example.org/a"},
	}
	for _, e := range endpoints {
		insertChild(t, s, e)
	}
	contact := &spreg.Contact{Record: spreg.NewRecord(sp.ID, ts), Type: spreg.ContactTechnical, FirstName: "Tea", LastName: "Tech", Email: "tech@example.org"}
	insertChild(t, s, contact)

	err := s.View(ctx, func(tx spreg.Tx) error {
		got, err := spreg.ChildrenOf[*spreg.Endpoint](ctx, tx, sp.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "https://children.example.org/b", got[0].Location)
		require.NotNil(t, got[0].Index)
		assert.Equal(t, 1, *got[0].Index)
		assert.True(t, got[0].IsDefault)
		assert.Equal(t, "https://children.example.org/a", got[1].Location)
		assert.Nil(t, got[1].Index)

		all, err := tx.Children(ctx, sp.ID, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		contacts, err := spreg.ChildrenOf[*spreg.Contact](ctx, tx, sp.ID)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, contact.ID, contacts[0].ID)
		assert.Equal(t, "tech@example.org", contacts[0].Email)
		return nil
	})
	require.NoError(t, err)
}

func testChildStateAndDelete(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	sp := newSP("https://state.example.org")
	insert(t, s, sp)

	group := &spreg.UserGroup{Record: spreg.NewRecord(sp.ID, now()), Name: "staff"}
	insertChild(t, s, group)

	stamped := group.Clone().(*spreg.UserGroup)
	stamped.Validated = spreg.TimePtr(now())
	stamped.EndAt = spreg.TimePtr(now())
	stamped.Name = "ignored"
	require.NoError(t, s.Update(ctx, func(tx spreg.Tx) error {
		return tx.SetChildState(ctx, stamped)
	}))

	err := s.View(ctx, func(tx spreg.Tx) error {
		groups, err := spreg.ChildrenOf[*spreg.UserGroup](ctx, tx, sp.ID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "staff", groups[0].Name)
		assert.NotNil(t, groups[0].Validated)
		assert.NotNil(t, groups[0].EndAt)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, func(tx spreg.Tx) error {
		return tx.DeleteChild(ctx, spreg.KindUserGroup, group.ID)
	}))
	err = s.Update(ctx, func(tx spreg.Tx) error {
		return tx.DeleteChild(ctx, spreg.KindUserGroup, group.ID)
	})
	assert.ErrorIs(t, err, spreg.ErrNotFound)
}

func testListFilter(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	b := newSP("https://b.example.org")
	a := newSP("https://a.example.org")
	ldap := spreg.NewServiceProvider("ldap-client", spreg.ServiceTypeLDAP)
	ldap.CreatedAt, ldap.UpdatedAt = now(), now()
	insert(t, s, b)
	insert(t, s, a)
	insert(t, s, ldap)

	ended := current(t, s, b.ID)
	ended.EndAt = spreg.TimePtr(now())
	require.NoError(t, s.Update(ctx, func(tx spreg.Tx) error {
		return tx.SaveServiceProvider(ctx, ended)
	}))

	err := s.View(ctx, func(tx spreg.Tx) error {
		saml, err := tx.ServiceProviders(ctx, spreg.ProviderFilter{ServiceType: spreg.ServiceTypeSAML})
		require.NoError(t, err)
		require.Len(t, saml, 1)
		assert.Equal(t, a.EntityID, saml[0].EntityID)

		withEnded, err := tx.ServiceProviders(ctx, spreg.ProviderFilter{ServiceType: spreg.ServiceTypeSAML, IncludeEnded: true})
		require.NoError(t, err)
		require.Len(t, withEnded, 2)
		assert.Equal(t, a.EntityID, withEnded[0].EntityID)
		assert.Equal(t, b.EntityID, withEnded[1].EntityID)

		only, err := tx.ServiceProviders(ctx, spreg.ProviderFilter{EntityIDs: []string{"ldap-client"}})
		require.NoError(t, err)
		require.Len(t, only, 1)
		assert.Equal(t, spreg.ServiceTypeLDAP, only[0].ServiceType)
		return nil
	})
	require.NoError(t, err)
}

func testRollbackOnError(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	sp := newSP("https://rollback.example.org")

	err := s.Update(ctx, func(tx spreg.Tx) error {
		if err := tx.InsertServiceProvider(ctx, sp); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View(ctx, func(tx spreg.Tx) error {
		_, err := tx.ServiceProvider(ctx, sp.ID)
		return err
	})
	assert.ErrorIs(t, err, spreg.ErrNotFound)
}

func testAttributes(t *testing.T, s spreg.Store) {
	ctx := context.Background()
	mail := &spreg.Attribute{ID: uuid.New(), FriendlyName: "mail", Name: "urn:oid:0.9.2342.19200300.100.1.3", PublicSAML: true}
	cn := &spreg.Attribute{ID: uuid.New(), FriendlyName: "cn", Name: "urn:oid:2.5.4.3", PublicLDAP: true}

	require.NoError(t, s.Update(ctx, func(tx spreg.Tx) error {
		if err := tx.InsertAttribute(ctx, mail); err != nil {
			return err
		}
		return tx.InsertAttribute(ctx, cn)
	}))

	err := s.Update(ctx, func(tx spreg.Tx) error {
		return tx.InsertAttribute(ctx, &spreg.Attribute{ID: uuid.New(), FriendlyName: "email", Name: mail.Name})
	})
	assert.ErrorIs(t, err, spreg.ErrDuplicateEntity)

	err = s.View(ctx, func(tx spreg.Tx) error {
		attrs, err := tx.Attributes(ctx)
		require.NoError(t, err)
		require.Len(t, attrs, 2)
		assert.Equal(t, "cn", attrs[0].FriendlyName)
		assert.Equal(t, "mail", attrs[1].FriendlyName)
		assert.True(t, attrs[1].PublicSAML)
		return nil
	})
	require.NoError(t, err)
}
