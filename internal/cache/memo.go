package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/splitq/internal/domain"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
)

// DefaultMemoSize is the number of simplification results kept by a Memo.
const DefaultMemoSize = 1024

// Memo remembers full simplification results by canonical key. Results only
// depend on the input expression, so entries never go stale.
type Memo struct {
	entries *lru.Cache[string, ir.Expression]
	opts    logic.Options
	metrics *Metrics
}

// NewMemo creates a memo holding up to size results. metrics may be nil.
func NewMemo(size int, opts logic.Options, metrics *Metrics) (*Memo, error) {
	entries, err := lru.New[string, ir.Expression](size)
	if err != nil {
		return nil, fmt.Errorf("create simplify memo: %w", err)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Memo{entries: entries, opts: opts, metrics: metrics}, nil
}

// Simplify returns domain.Simplify(e), computing it at most once per key
// while the entry stays in the memo. Failures are not remembered.
func (m *Memo) Simplify(e ir.Expression) (ir.Expression, error) {
	key := e.Key()
	if out, ok := m.entries.Get(key); ok {
		m.metrics.memoHits.Inc()
		return out, nil
	}
	m.metrics.memoMisses.Inc()
	out, err := domain.Simplify(e, m.opts)
	if err != nil {
		return nil, err
	}
	m.entries.Add(key, out)
	return out, nil
}

// Len returns the number of remembered results.
func (m *Memo) Len() int { return m.entries.Len() }
