package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
)

// Remote fetches rows the cache does not hold. actual is the filter the
// returned rows satisfy; it must cover the requested filter and may be
// wider.
type Remote interface {
	Fetch(ctx context.Context, filter ir.Expression) (actual ir.Expression, data *engine.Dataset, err error)
}

// Engine filters and combines datasets.
type Engine interface {
	Refine(d *engine.Dataset, filter ir.Expression) (*engine.Dataset, error)
	Union(datasets ...*engine.Dataset) (*engine.Dataset, error)
}

// ErrIncompleteFetch means a remote returned data whose filter does not
// cover the request.
var ErrIncompleteFetch = errors.New("remote data does not cover the request")

// Config configures NewMinimal. Store and Remote are required.
type Config struct {
	Store  Store
	Remote Remote

	// Engine defaults to the in-memory row engine.
	Engine Engine

	// MemoSize bounds the simplification memo. Defaults to DefaultMemoSize.
	MemoSize int

	// Simplify bounds DNF expansion during planning.
	Simplify logic.Options

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to unregistered collectors.
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.Engine == nil {
		c.Engine = engine.New()
	}
	if c.MemoSize <= 0 {
		c.MemoSize = DefaultMemoSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil)
	}
	return c
}

// MinimalCache answers filters from cached data as far as possible and
// fetches only what is missing.
//
// Cached keys are visited in store order. Every key overlapping the
// outstanding filter contributes its rows (refined by that filter) and is
// subtracted from it. Whatever is left is fetched from the remote once,
// stored, and added to the result.
//
// Concurrent lookups needing the same leftover share one remote fetch.
type MinimalCache struct {
	cfg   Config
	memo  *Memo
	log   *slog.Logger
	group singleflight.Group
}

// Step is one dataset of a plan: the rows stored under Key, refined by
// Filter.
type Step struct {
	Key    ir.Expression
	Filter ir.Expression
}

// Plan lists the cached datasets answering a filter. Missing is the filter
// still to be fetched, nil when the cache covers everything.
type Plan struct {
	Steps   []Step
	Missing ir.Expression
}

func NewMinimal(cfg Config) (*MinimalCache, error) {
	if cfg.Store == nil || cfg.Remote == nil {
		return nil, errors.New("minimal cache needs a store and a remote")
	}
	cfg = cfg.withDefaults()
	memo, err := NewMemo(cfg.MemoSize, cfg.Simplify, cfg.Metrics)
	if err != nil {
		return nil, err
	}
	return &MinimalCache{
		cfg:  cfg,
		memo: memo,
		log:  cfg.Logger.With("component", "cache"),
	}, nil
}

// Plan computes which cached datasets answer filter, without reading data
// or contacting the remote.
func (c *MinimalCache) Plan(ctx context.Context, filter ir.Expression) (Plan, error) {
	outstanding, err := c.memo.Simplify(filter)
	if err != nil {
		return Plan{}, fmt.Errorf("plan %s: %w", filter, err)
	}
	if outstanding == ir.False {
		return Plan{}, nil
	}

	keys, err := c.cfg.Store.Keys(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("list cached keys: %w", err)
	}

	var plan Plan
	for _, key := range keys {
		overlap, err := c.memo.Simplify(ir.All(outstanding, key))
		if err != nil {
			return Plan{}, fmt.Errorf("plan %s: %w", filter, err)
		}
		if overlap == ir.False {
			continue
		}
		plan.Steps = append(plan.Steps, Step{Key: key, Filter: outstanding})
		outstanding, err = c.memo.Simplify(ir.All(outstanding, ir.Negate(key)))
		if err != nil {
			return Plan{}, fmt.Errorf("plan %s: %w", filter, err)
		}
		if outstanding == ir.False {
			return plan, nil
		}
	}
	plan.Missing = outstanding
	return plan, nil
}

type fetched struct {
	actual ir.Expression
	data   *engine.Dataset
}

// Get returns the rows matching filter.
func (c *MinimalCache) Get(ctx context.Context, filter ir.Expression) (*engine.Dataset, error) {
	plan, err := c.Plan(ctx, filter)
	if err != nil {
		return nil, err
	}

	var parts []*engine.Dataset
	for _, step := range plan.Steps {
		data, err := c.cfg.Store.Get(ctx, step.Key)
		if err != nil {
			return nil, fmt.Errorf("read cached %s: %w", step.Key, err)
		}
		part, err := c.cfg.Engine.Refine(data, step.Filter)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	switch {
	case plan.Missing == nil && len(plan.Steps) > 0:
		c.cfg.Metrics.lookups.WithLabelValues("hit").Inc()
	case plan.Missing != nil && len(plan.Steps) > 0:
		c.cfg.Metrics.lookups.WithLabelValues("partial").Inc()
	case plan.Missing != nil:
		c.cfg.Metrics.lookups.WithLabelValues("miss").Inc()
	}

	if plan.Missing != nil {
		got, err := c.fetch(ctx, plan.Missing)
		if err != nil {
			c.cfg.Metrics.fetchErrors.Inc()
			return nil, err
		}
		part, err := c.cfg.Engine.Refine(got.data, plan.Missing)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	c.cfg.Metrics.planSteps.Observe(float64(len(parts)))
	c.log.DebugContext(ctx, "cache lookup",
		"key_digest", ir.Digest(filter), "cached_steps", len(plan.Steps), "fetched", plan.Missing != nil)
	return c.cfg.Engine.Union(parts...)
}

// fetch retrieves missing from the remote and stores the result. Callers
// asking for the same filter at the same time share one fetch.
func (c *MinimalCache) fetch(ctx context.Context, missing ir.Expression) (fetched, error) {
	v, err, shared := c.group.Do(missing.Key(), func() (any, error) {
		c.cfg.Metrics.fetches.Inc()
		actual, data, err := c.cfg.Remote.Fetch(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", missing, err)
		}
		left, err := c.memo.Simplify(ir.All(missing, ir.Negate(actual)))
		if err != nil {
			return nil, fmt.Errorf("check fetch of %s: %w", missing, err)
		}
		if left != ir.False {
			return nil, fmt.Errorf("fetch %s returned %s: %w", missing, actual, ErrIncompleteFetch)
		}
		if err := c.cfg.Store.Put(ctx, actual, data); err != nil {
			return nil, fmt.Errorf("store fetched %s: %w", actual, err)
		}
		c.log.InfoContext(ctx, "fetched from remote",
			"key_digest", ir.Digest(actual), "clauses", len(ir.Clauses(actual)), "rows", data.Len())
		return fetched{actual: actual, data: data}, nil
	})
	if err != nil {
		return fetched{}, err
	}
	if shared {
		c.log.DebugContext(ctx, "shared remote fetch", "key_digest", ir.Digest(missing))
	}
	return v.(fetched), nil
}
