package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spregistry/spreg/pkg/spreg"
)

var errReadOnly = errors.New("write in read-only transaction")

// MemoryStore keeps the registry in process memory. Update transactions are
// serialized by a writer lock and rolled back when fn returns an error.
// Records are copied on the way in and out, so callers never share state
// with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	versions   map[uuid.UUID][]*spreg.ServiceProvider
	children   map[uuid.UUID][]spreg.Child
	attributes []*spreg.Attribute
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		versions: make(map[uuid.UUID][]*spreg.ServiceProvider),
		children: make(map[uuid.UUID][]spreg.Child),
	}}
}

// snapshot copies the maps and slices. Stored records are replaced, never
// mutated, so sharing the pointers is safe.
func (s *memState) snapshot() *memState {
	c := &memState{
		versions:   make(map[uuid.UUID][]*spreg.ServiceProvider, len(s.versions)),
		children:   make(map[uuid.UUID][]spreg.Child, len(s.children)),
		attributes: slices.Clone(s.attributes),
	}
	for id, v := range s.versions {
		c.versions[id] = slices.Clone(v)
	}
	for id, v := range s.children {
		c.children[id] = slices.Clone(v)
	}
	return c
}

func (m *MemoryStore) View(ctx context.Context, fn func(spreg.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{state: m.state, readOnly: true})
}

func (m *MemoryStore) Update(ctx context.Context, fn func(spreg.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.state.snapshot()
	if err := fn(&memTx{state: m.state}); err != nil {
		m.state = backup
		return err
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type memTx struct {
	state    *memState
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *memTx) current(id uuid.UUID) (*spreg.ServiceProvider, bool) {
	v := t.state.versions[id]
	if len(v) == 0 {
		return nil, false
	}
	return v[len(v)-1], true
}

func (t *memTx) ServiceProvider(ctx context.Context, id uuid.UUID) (*spreg.ServiceProvider, error) {
	sp, ok := t.current(id)
	if !ok {
		return nil, fmt.Errorf("service provider %s: %w", id, spreg.ErrNotFound)
	}
	return sp.Clone(), nil
}

func (t *memTx) ServiceProviderByEntityID(ctx context.Context, entityID string) (*spreg.ServiceProvider, error) {
	for id := range t.state.versions {
		sp, _ := t.current(id)
		if sp.EntityID == entityID && sp.Active() {
			return sp.Clone(), nil
		}
	}
	return nil, fmt.Errorf("entity %s: %w", entityID, spreg.ErrNotFound)
}

func (t *memTx) ServiceProviders(ctx context.Context, filter spreg.ProviderFilter) ([]*spreg.ServiceProvider, error) {
	var out []*spreg.ServiceProvider
	for id := range t.state.versions {
		sp, _ := t.current(id)
		if filter.Match(sp) {
			out = append(out, sp.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *spreg.ServiceProvider) int {
		if n := strings.Compare(a.EntityID, b.EntityID); n != 0 {
			return n
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (t *memTx) Versions(ctx context.Context, id uuid.UUID) ([]*spreg.ServiceProvider, error) {
	v := t.state.versions[id]
	if len(v) == 0 {
		return nil, fmt.Errorf("service provider %s: %w", id, spreg.ErrNotFound)
	}
	out := make([]*spreg.ServiceProvider, len(v))
	for i, sp := range v {
		out[i] = sp.Clone()
	}
	return out, nil
}

func (t *memTx) InsertServiceProvider(ctx context.Context, sp *spreg.ServiceProvider) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.state.versions[sp.ID]; exists {
		return fmt.Errorf("service provider %s already stored: %w", sp.ID, spreg.ErrDuplicateEntity)
	}
	if sp.Version != 1 {
		return fmt.Errorf("new service provider must start at version 1, got %d", sp.Version)
	}
	if err := t.checkActiveEntity(sp); err != nil {
		return err
	}
	t.state.versions[sp.ID] = []*spreg.ServiceProvider{sp.Clone()}
	return nil
}

func (t *memTx) checkActiveEntity(sp *spreg.ServiceProvider) error {
	if !sp.Active() {
		return nil
	}
	for id := range t.state.versions {
		if id == sp.ID {
			continue
		}
		other, _ := t.current(id)
		if other.EntityID == sp.EntityID && other.Active() {
			return fmt.Errorf("entity %s: %w", sp.EntityID, spreg.ErrDuplicateEntity)
		}
	}
	return nil
}

func (t *memTx) SaveServiceProvider(ctx context.Context, sp *spreg.ServiceProvider) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.current(sp.ID)
	if !ok {
		return fmt.Errorf("service provider %s: %w", sp.ID, spreg.ErrNotFound)
	}
	if cur.Version != sp.Version {
		return fmt.Errorf("save version %d, current is %d: %w", sp.Version, cur.Version, spreg.ErrConcurrentModification)
	}
	if err := t.checkActiveEntity(sp); err != nil {
		return err
	}
	v := t.state.versions[sp.ID]
	v[len(v)-1] = sp.Clone()
	return nil
}

func (t *memTx) AppendVersion(ctx context.Context, frozen, next *spreg.ServiceProvider) error {
	if err := t.writable(); err != nil {
		return err
	}
	if frozen.ID != next.ID || next.Version != frozen.Version+1 {
		return fmt.Errorf("version %d of %s cannot follow version %d of %s", next.Version, next.ID, frozen.Version, frozen.ID)
	}
	if err := t.SaveServiceProvider(ctx, frozen); err != nil {
		return err
	}
	if err := t.checkActiveEntity(next); err != nil {
		return err
	}
	t.state.versions[next.ID] = append(t.state.versions[next.ID], next.Clone())
	return nil
}

func (t *memTx) Children(ctx context.Context, spID uuid.UUID, kind spreg.ChildKind) ([]spreg.Child, error) {
	var out []spreg.Child
	for _, c := range t.state.children[spID] {
		if kind == "" || c.Kind() == kind {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (t *memTx) InsertChild(ctx context.Context, c spreg.Child) error {
	if err := t.writable(); err != nil {
		return err
	}
	h := c.Header()
	if _, ok := t.current(h.SPID); !ok {
		return fmt.Errorf("parent %s: %w", h.SPID, spreg.ErrNotFound)
	}
	if _, idx := t.findChild(h.SPID, h.ID); idx >= 0 {
		return fmt.Errorf("child %s already stored", h.ID)
	}
	t.state.children[h.SPID] = append(t.state.children[h.SPID], c.Clone())
	return nil
}

func (t *memTx) findChild(spID, id uuid.UUID) ([]spreg.Child, int) {
	list := t.state.children[spID]
	for i, c := range list {
		if c.Header().ID == id {
			return list, i
		}
	}
	return list, -1
}

func (t *memTx) SetChildState(ctx context.Context, c spreg.Child) error {
	if err := t.writable(); err != nil {
		return err
	}
	h := c.Header()
	list, idx := t.findChild(h.SPID, h.ID)
	if idx < 0 {
		return fmt.Errorf("%s %s: %w", c.Kind(), h.ID, spreg.ErrNotFound)
	}
	updated := list[idx].Clone()
	uh := updated.Header()
	uh.Validated = cloneTime(h.Validated)
	uh.EndAt = cloneTime(h.EndAt)
	list[idx] = updated
	return nil
}

func (t *memTx) DeleteChild(ctx context.Context, kind spreg.ChildKind, id uuid.UUID) error {
	if err := t.writable(); err != nil {
		return err
	}
	for spID, list := range t.state.children {
		for i, c := range list {
			if c.Header().ID == id && c.Kind() == kind {
				t.state.children[spID] = slices.Delete(list, i, i+1)
				return nil
			}
		}
	}
	return fmt.Errorf("%s %s: %w", kind, id, spreg.ErrNotFound)
}

func (t *memTx) Attributes(ctx context.Context) ([]*spreg.Attribute, error) {
	out := make([]*spreg.Attribute, len(t.state.attributes))
	for i, a := range t.state.attributes {
		out[i] = a.Clone()
	}
	slices.SortFunc(out, func(a, b *spreg.Attribute) int { return strings.Compare(a.FriendlyName, b.FriendlyName) })
	return out, nil
}

func (t *memTx) InsertAttribute(ctx context.Context, a *spreg.Attribute) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.state.attributes {
		if existing.ID == a.ID || existing.Name == a.Name {
			return fmt.Errorf("attribute %s: %w", a.Name, spreg.ErrDuplicateEntity)
		}
	}
	t.state.attributes = append(t.state.attributes, a.Clone())
	return nil
}
