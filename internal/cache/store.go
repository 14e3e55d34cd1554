package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/splitq/internal/codec"
	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/store"
)

// ErrNotFound is returned by Store.Get for a key without data.
var ErrNotFound = store.ErrNotFound

// Store holds datasets keyed by the filter they satisfy. Keys must come back
// Equal to the expressions they were stored under.
type Store interface {
	Get(ctx context.Context, key ir.Expression) (*engine.Dataset, error)
	Put(ctx context.Context, key ir.Expression, data *engine.Dataset) error
	Keys(ctx context.Context) ([]ir.Expression, error)
}

// MemoryStore is an in-process Store. Keys are listed in insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []ir.Expression
	entries map[string]*engine.Dataset
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*engine.Dataset)}
}

func (m *MemoryStore) Get(_ context.Context, key ir.Expression) (*engine.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.entries[key.Key()]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) Put(_ context.Context, key ir.Expression, data *engine.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key.Key()]; !ok {
		m.order = append(m.order, key)
	}
	m.entries[key.Key()] = data
	return nil
}

func (m *MemoryStore) Keys(context.Context) ([]ir.Expression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ir.Expression(nil), m.order...), nil
}

// PersistentStore keeps datasets in a SQLite store. Keys are stored as
// canonical JSON and datasets as MessagePack.
type PersistentStore struct {
	db *store.Store
}

// NewPersistentStore wraps an open store.
func NewPersistentStore(db *store.Store) *PersistentStore {
	return &PersistentStore{db: db}
}

func (p *PersistentStore) Get(ctx context.Context, key ir.Expression) (*engine.Dataset, error) {
	payload, err := p.db.Get(ctx, string(ir.Marshal(key)))
	if err != nil {
		return nil, err
	}
	return codec.UnmarshalDataset(payload)
}

func (p *PersistentStore) Put(ctx context.Context, key ir.Expression, data *engine.Dataset) error {
	payload, err := codec.MarshalDataset(data)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return p.db.Put(ctx, string(ir.Marshal(key)), payload)
}

// Keys decodes every stored key. A key that does not decode as an
// expression fails the listing.
func (p *PersistentStore) Keys(ctx context.Context) ([]ir.Expression, error) {
	raw, err := p.db.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]ir.Expression, 0, len(raw))
	for _, k := range raw {
		e, err := ir.Unmarshal([]byte(k))
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", k, err)
		}
		keys = append(keys, e)
	}
	return keys, nil
}

// IsNotFound reports whether err means a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
