package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/splitq/internal/domain"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
	"github.com/roach88/splitq/internal/query"
	"github.com/roach88/splitq/internal/store"
)

// Capability describes what a source can contribute to a query.
//
// Superset is the query to run on the source; nil means the source has
// nothing to offer. Refine, when set, filters and projects the superset's
// rows down to the part of the query they cover. Remainder, when set, is
// the part of the query the source cannot provide.
type Capability struct {
	Superset  *query.Query
	Refine    *query.Query
	Remainder *query.Query
}

// Source is a place rows can be read from.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Tables lists the tables the source can serve.
	Tables() []string

	Capability(ctx context.Context, q query.Query) (Capability, error)

	// Query returns the raw rows of a superset previously offered by
	// Capability, as a JSON array of objects.
	Query(ctx context.Context, superset query.Query) ([]byte, error)
}

// Cache is a Source that also keeps rows fetched from other sources.
type Cache interface {
	Source
	Write(ctx context.Context, superset query.Query, raw []byte) error
}

// FetchFunc runs a query against a remote system.
type FetchFunc func(ctx context.Context, q query.Query) ([]byte, error)

// DecomposingSource serves one fixed query, the only data its remote can
// return, and offers it for any query it overlaps.
type DecomposingSource struct {
	name      string
	available query.Query
	fetch     FetchFunc
	opts      logic.Options
	log       *slog.Logger
}

// NewDecomposingSource creates a source whose remote returns available.
func NewDecomposingSource(name string, available query.Query, fetch FetchFunc) *DecomposingSource {
	return &DecomposingSource{
		name:      name,
		available: available,
		fetch:     fetch,
		log:       slog.Default().With("component", "resolver", "source", name),
	}
}

func (s *DecomposingSource) Name() string     { return s.name }
func (s *DecomposingSource) Tables() []string { return s.available.Tables() }

// Available returns the query the source serves.
func (s *DecomposingSource) Available() query.Query { return s.available }

func (s *DecomposingSource) Capability(ctx context.Context, q query.Query) (Capability, error) {
	return offer(ctx, s.log, q, s.available, s.opts)
}

func (s *DecomposingSource) Query(ctx context.Context, superset query.Query) ([]byte, error) {
	if !query.Equal(superset, s.available) {
		return nil, fmt.Errorf("source %s only serves %s, asked for %s", s.name, s.available, superset)
	}
	return s.fetch(ctx, superset)
}

// offer decomposes q against an available query. Unusable or disjoint
// pairs yield an empty Capability.
func offer(ctx context.Context, log *slog.Logger, q, available query.Query, opts logic.Options) (Capability, error) {
	refine, remainder, err := query.DecomposeQuery(q, available)
	if query.IsDecompositionError(err) {
		log.DebugContext(ctx, "source cannot serve query", "query", q.String(), "reason", err.Error())
		return Capability{}, nil
	}
	if err != nil {
		return Capability{}, err
	}
	if remainder != nil {
		overlap, err := domain.Simplify(ir.All(where(q), where(available)), opts)
		if err != nil {
			return Capability{}, fmt.Errorf("check overlap of %s: %w", q, err)
		}
		if overlap == ir.False {
			return Capability{}, nil
		}
	}
	superset := available
	return Capability{Superset: &superset, Refine: refine, Remainder: remainder}, nil
}

func where(q query.Query) ir.Expression {
	if q.Where == nil {
		return ir.True
	}
	return q.Where
}

// StoreCache keeps raw rows in a SQLite store keyed by the query they
// answer.
type StoreCache struct {
	name   string
	db     *store.Store
	tables []string
	opts   logic.Options
	log    *slog.Logger
}

// NewStoreCache creates a cache over db accepting rows of the given tables.
func NewStoreCache(name string, db *store.Store, tables ...string) *StoreCache {
	return &StoreCache{
		name:   name,
		db:     db,
		tables: tables,
		log:    slog.Default().With("component", "resolver", "cache", name),
	}
}

func (c *StoreCache) Name() string     { return c.name }
func (c *StoreCache) Tables() []string { return c.tables }

// Capability offers the first stored query that can serve part of q.
func (c *StoreCache) Capability(ctx context.Context, q query.Query) (Capability, error) {
	keys, err := c.db.Keys(ctx)
	if err != nil {
		return Capability{}, err
	}
	for _, k := range keys {
		cached, err := query.Unmarshal([]byte(k))
		if err != nil {
			c.log.WarnContext(ctx, "skipping undecodable key", "error", err)
			continue
		}
		if cached.Table != q.Table {
			continue
		}
		capability, err := offer(ctx, c.log, q, cached, c.opts)
		if err != nil {
			return Capability{}, err
		}
		if capability.Superset != nil {
			return capability, nil
		}
	}
	return Capability{}, nil
}

func (c *StoreCache) Query(ctx context.Context, superset query.Query) ([]byte, error) {
	return c.db.Get(ctx, superset.Key())
}

func (c *StoreCache) Write(ctx context.Context, superset query.Query, raw []byte) error {
	return c.db.Put(ctx, superset.Key(), raw)
}

func covers(tables, want []string) bool {
	for _, t := range want {
		if !slices.Contains(tables, t) {
			return false
		}
	}
	return true
}
