package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spregistry/spreg/pkg/spreg"
)

func TestSnapshot_NewEndpointHiddenUntilValidated(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://view.example.org")
	validate(t, s, sp)
	require.NoError(t, s.AddChild(ctx, sp.ID, endpoint("https://view.example.org/acs")))

	published, err := s.Snapshot(ctx, sp.EntityID, true)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Empty(t, published.Children.Endpoints)

	live, err := s.Snapshot(ctx, sp.EntityID, false)
	require.NoError(t, err)
	assert.Len(t, live.Children.Endpoints, 1)
	assert.Nil(t, live.Point)
}

func TestSnapshot_NeverValidatedIsSkipped(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	register(t, s, "https://draft.example.org")

	snap, err := s.Snapshot(ctx, "https://draft.example.org", true)
	require.NoError(t, err)
	assert.Nil(t, snap)

	all, err := s.Snapshots(ctx, spreg.ProviderFilter{}, true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSnapshot_FallsBackToLastValidatedVersion(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sp := register(t, s, "https://fallback.example.org")
	kept := endpoint("https://fallback.example.org/kept")
	removed := endpoint("https://fallback.example.org/removed")
	require.NoError(t, s.AddChild(ctx, sp.ID, kept))
	require.NoError(t, s.AddChild(ctx, sp.ID, removed))
	v1 := validate(t, s, sp)

	_, err := s.Update(ctx, sp.ID, func(sp *spreg.ServiceProvider) error {
		sp.Name.EN = "Edited"
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.RemoveChild(ctx, sp.ID, spreg.KindEndpoint, removed.ID))
	require.NoError(t, s.AddChild(ctx, sp.ID, endpoint("https://fallback.example.org/new")))

	published, err := s.Snapshot(ctx, sp.EntityID, true)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, 1, published.Provider.Version)
	assert.Equal(t, "Original", published.Provider.Name.EN)
	assert.Equal(t, *v1.Validated, *published.Point)
	require.Len(t, published.Children.Endpoints, 2)
	assert.Equal(t, kept.ID, published.Children.Endpoints[0].ID)
	assert.Equal(t, removed.ID, published.Children.Endpoints[1].ID)

	live, err := s.Snapshot(ctx, sp.EntityID, false)
	require.NoError(t, err)
	assert.Equal(t, "Edited", live.Provider.Name.EN)
	require.Len(t, live.Children.Endpoints, 2)
	assert.Equal(t, "https://fallback.example.org/kept", live.Children.Endpoints[0].Location)
	assert.Equal(t, "https://fallback.example.org/new", live.Children.Endpoints[1].Location)

	// Validating the new version publishes the edits.
	validate(t, s, sp)
	published, err = s.Snapshot(ctx, sp.EntityID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, published.Provider.Version)
	assert.Equal(t, "Edited", published.Provider.Name.EN)
	assert.Len(t, published.Children.Endpoints, 2)
}

func TestSnapshots_SkipsDeletedAndFilters(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	a := register(t, s, "https://a.example.org")
	b := register(t, s, "https://b.example.org")
	validate(t, s, a)
	validate(t, s, b)
	require.NoError(t, s.Delete(ctx, b.ID))

	ldap := spreg.NewServiceProvider("ldap-service", spreg.ServiceTypeLDAP)
	_, err := s.Register(ctx, ldap)
	require.NoError(t, err)

	live, err := s.Snapshots(ctx, spreg.ProviderFilter{}, false)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "https://a.example.org", live[0].Provider.EntityID)
	assert.Equal(t, "ldap-service", live[1].Provider.EntityID)

	saml, err := s.Snapshots(ctx, spreg.ProviderFilter{ServiceType: spreg.ServiceTypeSAML}, true)
	require.NoError(t, err)
	require.Len(t, saml, 1)
	assert.Equal(t, "https://a.example.org", saml[0].Provider.EntityID)
}
