package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
)

// ResolutionError reports a query that the configured caches and sources
// cannot fully answer.
type ResolutionError struct {
	Query     query.Query
	Remainder query.Query

	// Tried lists the sources consulted, in order.
	Tried []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s with sources %v: nothing serves %s", e.Query, e.Tried, e.Remainder)
}

// IsResolutionError reports whether err wraps a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// Engine turns raw rows into datasets and combines them.
type Engine interface {
	Process(raw []byte) (*engine.Dataset, error)
	Refine(d *engine.Dataset, filter ir.Expression) (*engine.Dataset, error)
	Project(d *engine.Dataset, columns []string) (*engine.Dataset, error)
	Union(datasets ...*engine.Dataset) (*engine.Dataset, error)
}

// Config configures New.
type Config struct {
	// Caches are consulted first, in order.
	Caches []Cache

	// Sources are consulted in priority order for whatever the caches do not
	// hold.
	Sources []Source

	// Engine defaults to the in-memory row engine.
	Engine Engine

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// MaxReads bounds the reads of one plan. Zero means DefaultMaxReads.
	MaxReads int
}

func (c Config) withDefaults() Config {
	if c.Engine == nil {
		c.Engine = engine.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Resolver answers queries by splitting them across caches and sources.
type Resolver struct {
	cfg Config
	log *slog.Logger
}

// Step is one read of a resolution plan.
type Step struct {
	Source    Source
	Superset  query.Query
	Refine    *query.Query
	FromCache bool
}

func New(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{cfg: cfg, log: cfg.Logger.With("component", "resolver")}
}

// Plan decides which reads answer q.
//
// Each cache is asked repeatedly while it keeps offering new stored
// queries; each source is asked once. Every offer shrinks the outstanding
// query to its remainder. A remainder left after the last source fails with
// *ResolutionError; a plan longer than Config.MaxReads fails with
// *ReadsExceededError.
func (r *Resolver) Plan(ctx context.Context, q query.Query) ([]Step, error) {
	var steps []Step
	var tried []string
	current := &q
	quota := newReadQuota(r.cfg.MaxReads)

	for _, c := range r.cfg.Caches {
		seen := map[string]bool{}
		for current != nil && covers(c.Tables(), current.Tables()) {
			capability, err := c.Capability(ctx, *current)
			if err != nil {
				return nil, fmt.Errorf("cache %s: %w", c.Name(), err)
			}
			if capability.Superset == nil || seen[capability.Superset.Key()] {
				break
			}
			seen[capability.Superset.Key()] = true
			if err := quota.check(q.String()); err != nil {
				return nil, err
			}
			steps = append(steps, Step{Source: c, Superset: *capability.Superset, Refine: capability.Refine, FromCache: true})
			current = capability.Remainder
		}
	}

	for _, s := range r.cfg.Sources {
		if current == nil {
			break
		}
		if !covers(s.Tables(), current.Tables()) {
			continue
		}
		tried = append(tried, s.Name())
		capability, err := s.Capability(ctx, *current)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Name(), err)
		}
		if capability.Superset == nil {
			continue
		}
		if err := quota.check(q.String()); err != nil {
			return nil, err
		}
		steps = append(steps, Step{Source: s, Superset: *capability.Superset, Refine: capability.Refine})
		current = capability.Remainder
	}

	if current != nil {
		return nil, &ResolutionError{Query: q, Remainder: *current, Tried: tried}
	}
	return steps, nil
}

// Run resolves q and returns its rows. Rows read from a source are written
// to every cache covering the source query's tables.
func (r *Resolver) Run(ctx context.Context, q query.Query) (*engine.Dataset, error) {
	steps, err := r.Plan(ctx, q)
	if err != nil {
		return nil, err
	}

	parts := make([]*engine.Dataset, 0, len(steps))
	for _, step := range steps {
		raw, err := step.Source.Query(ctx, step.Superset)
		if err != nil {
			return nil, fmt.Errorf("read %s from %s: %w", step.Superset, step.Source.Name(), err)
		}
		if !step.FromCache {
			r.writeCaches(ctx, step.Superset, raw)
		}
		data, err := r.cfg.Engine.Process(raw)
		if err != nil {
			return nil, fmt.Errorf("process rows from %s: %w", step.Source.Name(), err)
		}
		if step.Refine != nil {
			if data, err = r.cfg.Engine.Refine(data, step.Refine.Where); err != nil {
				return nil, err
			}
			if data, err = r.cfg.Engine.Project(data, columnNames(step.Refine.Select)); err != nil {
				return nil, err
			}
		}
		parts = append(parts, data)
	}

	r.log.DebugContext(ctx, "resolved query", "query", q.String(), "steps", len(steps))
	if len(parts) == 1 {
		return parts[0], nil
	}
	return r.cfg.Engine.Union(parts...)
}

// writeCaches stores fetched rows. A failed write is logged and does not
// fail the query.
func (r *Resolver) writeCaches(ctx context.Context, superset query.Query, raw []byte) {
	for _, c := range r.cfg.Caches {
		if !covers(c.Tables(), superset.Tables()) {
			continue
		}
		if err := c.Write(ctx, superset, raw); err != nil {
			r.log.WarnContext(ctx, "cache write failed", "cache", c.Name(), "key_digest", superset.Digest(), "error", err)
		}
	}
}

func columnNames(cols []ir.Attribute) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// TableRemote serves a MinimalCache on one table by resolving each missing
// filter as a whole-row query.
type TableRemote struct {
	Resolver *Resolver
	Table    string
}

func (t TableRemote) Fetch(ctx context.Context, filter ir.Expression) (ir.Expression, *engine.Dataset, error) {
	data, err := t.Resolver.Run(ctx, query.New(t.Table, nil, filter))
	if err != nil {
		return nil, nil, err
	}
	return filter, data, nil
}
