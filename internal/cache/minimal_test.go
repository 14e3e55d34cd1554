package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/ir"
)

var x = ir.Attr("x")

// fakeRemote serves rows x = 0..10 and answers exactly the filter asked.
type fakeRemote struct {
	all     *engine.Dataset
	calls   atomic.Int32
	asked   []ir.Expression
	mu      sync.Mutex
	release chan struct{}
	widen   func(ir.Expression) ir.Expression
}

func newFakeRemote() *fakeRemote {
	rows := make([]engine.Row, 0, 11)
	for i := range int64(11) {
		rows = append(rows, engine.Row{"x": ir.Int(i)})
	}
	return &fakeRemote{all: engine.NewDataset(rows)}
}

func (f *fakeRemote) Fetch(_ context.Context, filter ir.Expression) (ir.Expression, *engine.Dataset, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.asked = append(f.asked, filter)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	actual := filter
	if f.widen != nil {
		actual = f.widen(filter)
	}
	data, err := engine.New().Refine(f.all, actual)
	return actual, data, err
}

func xs(t *testing.T, d *engine.Dataset) []int64 {
	t.Helper()
	out := make([]int64, 0, d.Len())
	for _, r := range d.Rows {
		out = append(out, int64(r["x"].(ir.Int)))
	}
	slices.Sort(out)
	return out
}

func span(lo, hi int64) []int64 {
	var out []int64
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

func newTestCache(t *testing.T, remote Remote) (*MinimalCache, *MemoryStore, *Metrics) {
	t.Helper()
	st := NewMemoryStore()
	m := NewMetrics(nil)
	c, err := NewMinimal(Config{Store: st, Remote: remote, Metrics: m})
	require.NoError(t, err)
	return c, st, m
}

func TestMinimalCache_MissThenHit(t *testing.T) {
	remote := newFakeRemote()
	c, st, m := newTestCache(t, remote)
	ctx := context.Background()

	got, err := c.Get(ctx, x.Between(ir.Int(0), ir.Int(5)))
	require.NoError(t, err)
	assert.Equal(t, span(0, 5), xs(t, got))
	assert.Equal(t, int32(1), remote.calls.Load())

	keys, err := st.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	got, err = c.Get(ctx, x.Between(ir.Int(1), ir.Int(2)))
	require.NoError(t, err)
	assert.Equal(t, span(1, 2), xs(t, got))
	assert.Equal(t, int32(1), remote.calls.Load(), "subset is served from cache")

	assert.Equal(t, 1.0, promtest.ToFloat64(m.lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.fetches))
}

func TestMinimalCache_PartialFetchesOnlyTheGap(t *testing.T) {
	remote := newFakeRemote()
	c, _, m := newTestCache(t, remote)
	ctx := context.Background()

	_, err := c.Get(ctx, x.Between(ir.Int(0), ir.Int(5)))
	require.NoError(t, err)

	got, err := c.Get(ctx, x.Between(ir.Int(0), ir.Int(10)))
	require.NoError(t, err)
	assert.Equal(t, span(0, 10), xs(t, got))

	require.Len(t, remote.asked, 2)
	gap := ir.All(x.Gt(ir.Int(5)), x.Le(ir.Int(10)))
	assert.True(t, ir.Equal(gap, remote.asked[1]), "asked for %s", remote.asked[1])
	assert.Equal(t, 1.0, promtest.ToFloat64(m.lookups.WithLabelValues("partial")))
}

func TestMinimalCache_Plan(t *testing.T) {
	c, st, _ := newTestCache(t, newFakeRemote())
	ctx := context.Background()
	a := x.Between(ir.Int(0), ir.Int(3))
	b := x.Between(ir.Int(6), ir.Int(8))
	require.NoError(t, st.Put(ctx, a, engine.NewDataset(nil)))
	require.NoError(t, st.Put(ctx, b, engine.NewDataset(nil)))

	t.Run("covered by one key", func(t *testing.T) {
		plan, err := c.Plan(ctx, x.Between(ir.Int(1), ir.Int(2)))
		require.NoError(t, err)
		require.Len(t, plan.Steps, 1)
		assert.True(t, ir.Equal(a, plan.Steps[0].Key))
		assert.Nil(t, plan.Missing)
	})

	t.Run("disjoint key is skipped", func(t *testing.T) {
		plan, err := c.Plan(ctx, x.Between(ir.Int(6), ir.Int(7)))
		require.NoError(t, err)
		require.Len(t, plan.Steps, 1)
		assert.True(t, ir.Equal(b, plan.Steps[0].Key))
	})

	t.Run("gap between keys is missing", func(t *testing.T) {
		plan, err := c.Plan(ctx, x.Between(ir.Int(2), ir.Int(7)))
		require.NoError(t, err)
		require.Len(t, plan.Steps, 2)
		want := ir.All(x.Gt(ir.Int(3)), x.Lt(ir.Int(6)))
		assert.True(t, ir.Equal(want, plan.Missing), "missing %s", plan.Missing)
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		plan, err := c.Plan(ctx, ir.All(x.Gt(ir.Int(2)), x.Lt(ir.Int(1))))
		require.NoError(t, err)
		assert.Empty(t, plan.Steps)
		assert.Nil(t, plan.Missing)
	})
}

func TestMinimalCache_Unsatisfiable(t *testing.T) {
	remote := newFakeRemote()
	c, _, _ := newTestCache(t, remote)

	got, err := c.Get(context.Background(), ir.False)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Zero(t, remote.calls.Load())
}

func TestMinimalCache_WiderRemoteIsStored(t *testing.T) {
	remote := newFakeRemote()
	remote.widen = func(ir.Expression) ir.Expression { return ir.True }
	c, st, _ := newTestCache(t, remote)
	ctx := context.Background()

	got, err := c.Get(ctx, x.Eq(ir.Int(4)))
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, xs(t, got))

	keys, err := st.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, ir.True, keys[0])

	got, err = c.Get(ctx, x.Ge(ir.Int(9)))
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 10}, xs(t, got))
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestMinimalCache_IncompleteFetch(t *testing.T) {
	remote := newFakeRemote()
	remote.widen = func(ir.Expression) ir.Expression { return x.Eq(ir.Int(0)) }
	c, st, m := newTestCache(t, remote)
	ctx := context.Background()

	_, err := c.Get(ctx, x.Le(ir.Int(3)))
	assert.ErrorIs(t, err, ErrIncompleteFetch)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.fetchErrors))

	keys, err := st.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "incomplete data is not stored")
}

func TestMinimalCache_SharedFetch(t *testing.T) {
	remote := newFakeRemote()
	remote.release = make(chan struct{})
	c, _, _ := newTestCache(t, remote)
	ctx := context.Background()
	filter := x.Between(ir.Int(2), ir.Int(4))

	var wg sync.WaitGroup
	results := make([][]int64, 5)
	errs := make([]error, 5)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Get(ctx, filter)
			errs[i] = err
			if err == nil {
				results[i] = xs(t, got)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(remote.release)
	wg.Wait()

	for i := range 5 {
		require.NoError(t, errs[i])
		assert.Equal(t, span(2, 4), results[i])
	}
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestMinimalCache_RemoteError(t *testing.T) {
	boom := errors.New("boom")
	c, _, _ := newTestCache(t, remoteFunc(func(context.Context, ir.Expression) (ir.Expression, *engine.Dataset, error) {
		return nil, nil, boom
	}))

	_, err := c.Get(context.Background(), x.Eq(ir.Int(1)))
	assert.ErrorIs(t, err, boom)
}

type remoteFunc func(context.Context, ir.Expression) (ir.Expression, *engine.Dataset, error)

func (f remoteFunc) Fetch(ctx context.Context, e ir.Expression) (ir.Expression, *engine.Dataset, error) {
	return f(ctx, e)
}

func TestNewMinimal_RequiresCollaborators(t *testing.T) {
	_, err := NewMinimal(Config{Store: NewMemoryStore()})
	assert.Error(t, err)
}
