package balancer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
	"github.com/phil-mansfield/picell/params"
	"github.com/phil-mansfield/picell/particle"
)

func onRanks(size int, body func(c *comm.Comm)) {
	w := comm.NewWorld(size)
	wg := sync.WaitGroup{}
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			body(w.Comm(r))
		}(r)
	}
	wg.Wait()
}

func TestThresholdValidation(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	_, err := New(params.New().Add("threshold", 0.5), c)
	assert.Error(t, err)

	o, err := New(params.New().Add("threshold", 1.0), c)
	require.NoError(t, err)
	assert.False(t, o.Enabled())

	o, err = New(params.New().Add("threshold", 1.1), c)
	require.NoError(t, err)
	assert.True(t, o.Enabled())
}

func TestShouldRebalance(t *testing.T) {
	decisions := make([]bool, 2)
	onRanks(2, func(c *comm.Comm) {
		o, err := New(params.New().Add("threshold", 1.5), c)
		require.NoError(t, err)

		// Loads 30 and 10: max/mean = 30/20 = 1.5, not above threshold.
		load := 10.0
		if c.Rank() == 0 {
			load = 30.0
		}
		decisions[c.Rank()] = o.ShouldRebalance(load)
	})
	assert.False(t, decisions[0])
	assert.False(t, decisions[1])

	onRanks(2, func(c *comm.Comm) {
		o, err := New(params.New().Add("threshold", 1.2), c)
		require.NoError(t, err)
		load := 10.0
		if c.Rank() == 0 {
			load = 30.0
		}
		decisions[c.Rank()] = o.ShouldRebalance(load)
	})
	assert.True(t, decisions[0])
	assert.True(t, decisions[1])
}

// Two ranks with half the total weight in x < L/4, so
// the bisector lands at L/4 and the post-split imbalance is tiny.
func TestPartitionSkewedDensity(t *testing.T) {
	n := 16
	splits := make([]int, 2)
	loads := make([]float64, 2)
	onRanks(2, func(c *comm.Comm) {
		dom := index.NewBox(n, n, n)
		tags := []layout.Tag{layout.Parallel, layout.Serial, layout.Serial}
		l, err := layout.New(dom, tags, c, layout.AllPeriodic())
		require.NoError(t, err)

		w := field.New[float64](l)
		w.ForEach(func(idx []int, off int) {
			if idx[0] < n/4 {
				w.Data()[off] = 3
			} else {
				w.Data()[off] = 1
			}
		})

		o, err := New(params.New().Add("threshold", 1.05), c)
		require.NoError(t, err)
		boxes, err := o.Partition(w, l)
		require.NoError(t, err)

		splits[c.Rank()] = boxes[0][0].Last + 1

		// Per-rank load under the new partition.
		load := 0.0
		for i := boxes[c.Rank()][0].First; i <= boxes[c.Rank()][0].Last; i++ {
			if i < n/4 {
				load += 3 * float64(n*n)
			} else {
				load += float64(n * n)
			}
		}
		loads[c.Rank()] = load
	})

	// Both ranks computed the same partition, split within one cell of L/4.
	assert.Equal(t, splits[0], splits[1])
	assert.InDelta(t, n/4, splits[0], 1)

	maxLoad, mean := loads[0], (loads[0]+loads[1])/2
	if loads[1] > maxLoad {
		maxLoad = loads[1]
	}
	assert.Less(t, maxLoad/mean, 1.05)
}

func TestRepartitionMigrates(t *testing.T) {
	n := 8
	onRanks(2, func(c *comm.Comm) {
		dom := index.NewBox(n, n, n)
		tags := []layout.Tag{layout.Parallel, layout.Serial, layout.Serial}
		l, err := layout.New(dom, tags, c, layout.AllPeriodic())
		require.NoError(t, err)
		h := 1.0 / float64(n)
		m := mesh.New(dom, []float64{h, h, h}, []float64{0, 0, 0})

		// Weight seeded from a profile, before any particles exist: the
		// first-repartition flow.
		w := field.New[float64](l)
		w.ForEach(func(idx []int, off int) {
			if idx[0] < n/2 {
				w.Data()[off] = 9
			} else {
				w.Data()[off] = 1
			}
		})

		pc := particle.NewContainer(l, m)
		pc.Create(4)
		for i := 0; i < 4; i++ {
			pc.R.Set(i, 0, 0.9)
			pc.R.Set(i, 1, 0.5)
			pc.R.Set(i, 2, 0.5)
		}

		o, err := New(params.New().Add("threshold", 1.01), c)
		require.NoError(t, err)
		nl, err := o.Repartition(w, l, []*field.Field[float64]{w}, pc)
		require.NoError(t, err)

		// The field is rebound and its total is conserved.
		assert.True(t, w.Local().Equal(nl.Domain(c.Rank())))
		total := field.Sum(w)
		assert.InDelta(t, float64(9*n*n*n/2+n*n*n/2), total, 1e-9)

		// All particles sit at x = 0.9, owned by whichever rank holds the
		// right edge now.
		if nl.Domain(c.Rank())[0].Last == n-1 {
			assert.Equal(t, 8, pc.LocalNum())
		} else {
			assert.Equal(t, 0, pc.LocalNum())
		}
	})
}
