package particle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
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

func testSetup(
	t *testing.T, c *comm.Comm, n int,
) (*layout.Layout, *mesh.Mesh) {
	dom := index.NewBox(n, n, n)
	tags := []layout.Tag{layout.Parallel, layout.Serial, layout.Serial}
	l, err := layout.New(dom, tags, c, layout.AllPeriodic())
	require.NoError(t, err)
	h := 1.0 / float64(n)
	m := mesh.New(dom, []float64{h, h, h}, []float64{0, 0, 0})
	return l, m
}

func TestCreateAndDestroy(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	l, m := testSetup(t, c, 8)
	pc := NewContainer(l, m)
	q := NewFloat64("q")
	require.NoError(t, pc.Add(q))

	pc.Create(5)
	assert.Equal(t, 5, pc.LocalNum())
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, 5, pc.R.Len())

	for i := 0; i < 5; i++ {
		q.Data[i] = float64(i)
	}
	pc.Destroy([]bool{false, true, false, true, false})

	assert.Equal(t, 3, pc.LocalNum())
	assert.Equal(t, []float64{0, 2, 4}, q.Data)
	// IDs of the survivors are preserved.
	assert.Equal(t, []uint64{0, 2, 4}, pc.ID.Data)
}

func TestDuplicateAttribute(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	l, m := testSetup(t, c, 8)
	pc := NewContainer(l, m)
	require.NoError(t, pc.Add(NewFloat64("q")))
	assert.Error(t, pc.Add(NewFloat64("q")))
}

func TestUniqueIDsAcrossRanks(t *testing.T) {
	ids := make([][]uint64, 4)
	onRanks(4, func(c *comm.Comm) {
		l, m := testSetup(t, c, 8)
		pc := NewContainer(l, m)
		pc.Create(10)
		ids[c.Rank()] = append([]uint64{}, pc.ID.Data...)
	})

	seen := map[uint64]bool{}
	for r := range ids {
		for _, id := range ids[r] {
			assert.False(t, seen[id], "id %d duplicated", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 40)
}

func TestUpdateMovesParticle(t *testing.T) {
	// A particle at 0.51 L drifts to 0.49 L and must change hands to the
	// rank holding the left half of the first axis.
	counts := make([]int, 4)
	owners := make([]uint64, 4)
	onRanks(4, func(c *comm.Comm) {
		l, m := testSetup(t, c, 8)
		pc := NewContainer(l, m)
		q := NewFloat64("q")
		require.NoError(t, pc.Add(q))

		if c.Rank() == l.OwnerOf([]int{4, 0, 0}) {
			pc.Create(1)
			pc.R.Set(0, 0, 0.51)
			pc.R.Set(0, 1, 0.1)
			pc.R.Set(0, 2, 0.1)
			q.Data[0] = 2.5
			pc.ID.Data[0] = 77
		}
		require.NoError(t, pc.Update())

		// Drift left across the mid-plane.
		for i := 0; i < pc.LocalNum(); i++ {
			pc.R.Set(i, 0, 0.49)
		}
		require.NoError(t, pc.Update())

		counts[c.Rank()] = pc.LocalNum()
		if pc.LocalNum() == 1 {
			owners[c.Rank()] = pc.ID.Data[0]
			assert.Equal(t, 2.5, q.Data[0])
		}
	})

	total := 0
	for r, n := range counts {
		total += n
		if n == 1 {
			// 0.49 in units of h = 1/8 is cell 3, the second rank of four
			// splitting 8 cells along x.
			assert.Equal(t, 1, r)
			assert.Equal(t, uint64(77), owners[r])
		}
	}
	assert.Equal(t, 1, total)
}

func TestUpdateWrapsPeriodic(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	l, m := testSetup(t, c, 8)
	pc := NewContainer(l, m)
	pc.Create(1)
	pc.R.Set(0, 0, 1.2)
	pc.R.Set(0, 1, -0.3)
	pc.R.Set(0, 2, 0.5)

	require.NoError(t, pc.Update())

	assert.InDelta(t, 0.2, pc.R.At(0, 0), 1e-12)
	assert.InDelta(t, 0.7, pc.R.At(0, 1), 1e-12)
	assert.InDelta(t, 0.5, pc.R.At(0, 2), 1e-12)
}

func TestUpdateRejectsEscapees(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	dom := index.NewBox(8, 8, 8)
	tags := []layout.Tag{layout.Parallel, layout.Serial, layout.Serial}
	l, err := layout.New(dom, tags, c) // all faces None
	require.NoError(t, err)
	h := 1.0 / 8
	m := mesh.New(dom, []float64{h, h, h}, []float64{0, 0, 0})

	pc := NewContainer(l, m)
	pc.Create(1)
	pc.R.Set(0, 0, 2.0)
	pc.R.Set(0, 1, 0.5)
	pc.R.Set(0, 2, 0.5)

	err = pc.Update()
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Domain))
}
