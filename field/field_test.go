package field

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
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

func singleRankLayout(
	t *testing.T, lengths []int, opts ...layout.Option,
) *layout.Layout {
	c := comm.NewWorld(1).Comm(0)
	tags := make([]layout.Tag, len(lengths))
	for d := range tags {
		tags[d] = layout.Parallel
	}
	l, err := layout.New(index.NewBox(lengths...), tags, c, opts...)
	require.NoError(t, err)
	return l
}

func TestAtSet(t *testing.T) {
	l := singleRankLayout(t, []int{4, 4})
	f := New[float64](l)

	f.Set(3.5, 1, 2)
	assert.Equal(t, 3.5, f.At(1, 2))
	assert.Equal(t, 0.0, f.At(2, 1))

	// Ghost cells are addressable too.
	f.Set(-1, -1, -1)
	assert.Equal(t, -1.0, f.At(-1, -1))
}

func TestAssignExpr(t *testing.T) {
	l := singleRankLayout(t, []int{4, 4})
	a, b, out := New[float64](l), New[float64](l), New[float64](l)

	a.AssignConst(2)
	b.AssignConst(3)
	err := out.Assign(Add(Scale(2, Ref(a)), Mul(Ref(a), Ref(b))))
	require.NoError(t, err)

	out.ForEach(func(idx []int, off int) {
		assert.Equal(t, 10.0, out.Data()[off])
	})

	// Operands on a different layout are rejected.
	l2 := singleRankLayout(t, []int{4, 4})
	c := New[float64](l2)
	err = out.Assign(Ref(c))
	assert.Error(t, err)
}

func globalValue(idx []int, lengths []int) float64 {
	v := 0
	for d := range idx {
		v = v*lengths[d] + idx[d]
	}
	return float64(v)
}

func TestFillHaloSingleRankPeriodic(t *testing.T) {
	lengths := []int{4, 4}
	l := singleRankLayout(t, lengths, layout.AllPeriodic())
	f := New[float64](l)
	f.ForEach(func(idx []int, off int) {
		f.Data()[off] = globalValue(idx, lengths)
	})

	require.NoError(t, f.FillHalo())

	// Every ghost cell wraps to its periodic image.
	assert.Equal(t, f.At(3, 0), f.At(-1, 0))
	assert.Equal(t, f.At(0, 0), f.At(4, 0))
	assert.Equal(t, f.At(0, 3), f.At(0, -1))
	assert.Equal(t, f.At(3, 3), f.At(-1, -1))
	assert.Equal(t, f.At(0, 0), f.At(4, 4))
}

func TestFillHaloTwoRanks(t *testing.T) {
	lengths := []int{8, 4}
	checks := make([][3]float64, 2)
	onRanks(2, func(c *comm.Comm) {
		l, err := layout.New(
			index.NewBox(lengths...),
			[]layout.Tag{layout.Parallel, layout.Serial}, c,
			layout.AllPeriodic(),
		)
		require.NoError(t, err)
		f := New[float64](l)
		f.ForEach(func(idx []int, off int) {
			f.Data()[off] = globalValue(idx, lengths)
		})
		require.NoError(t, f.FillHalo())

		local := l.Local()
		lo, hi := local[0].First, local[0].Last
		checks[c.Rank()] = [3]float64{
			f.At(lo-1, 0), f.At(hi+1, 0), f.At(lo, -1),
		}
	})

	// Rank 0 owns x in [0,3], rank 1 owns [4,7].
	assert.Equal(t, globalValue([]int{7, 0}, lengths), checks[0][0])
	assert.Equal(t, globalValue([]int{4, 0}, lengths), checks[0][1])
	assert.Equal(t, globalValue([]int{0, 3}, lengths), checks[0][2])
	assert.Equal(t, globalValue([]int{3, 0}, lengths), checks[1][0])
	assert.Equal(t, globalValue([]int{0, 0}, lengths), checks[1][1])
	assert.Equal(t, globalValue([]int{4, 3}, lengths), checks[1][2])
}

func TestBoundaryOperators(t *testing.T) {
	l := singleRankLayout(t, []int{4},
		layout.WithBoundary(0, layout.DirichletZero),
		layout.WithBoundary(1, layout.NeumannZero),
	)
	f := New[float64](l)
	f.ForEach(func(idx []int, off int) {
		f.Data()[off] = float64(idx[0] + 1)
	})
	f.Set(99, -1)
	f.Set(99, 4)

	require.NoError(t, f.FillHalo())

	assert.Equal(t, 0.0, f.At(-1))
	// Neumann mirrors the nearest interior value across the wall.
	assert.Equal(t, f.At(3), f.At(4))
}

func TestFlushHaloWraps(t *testing.T) {
	l := singleRankLayout(t, []int{4}, layout.AllPeriodic())
	f := New[float64](l)
	f.Set(2, -1)
	f.Set(5, 4)

	require.NoError(t, f.FlushHalo())

	assert.Equal(t, 2.0, f.At(3))
	assert.Equal(t, 5.0, f.At(0))
}

func TestFlushHaloTwoRanks(t *testing.T) {
	sums := make([]float64, 2)
	onRanks(2, func(c *comm.Comm) {
		l, err := layout.New(
			index.NewBox(8), []layout.Tag{layout.Parallel}, c,
			layout.AllPeriodic(),
		)
		require.NoError(t, err)
		f := New[float64](l)
		f.AssignConst(1)
		// Deposit into both ghost cells.
		lo := l.Local()[0].First
		hi := l.Local()[0].Last
		f.Set(10, lo-1)
		f.Set(20, hi+1)

		require.NoError(t, f.FlushHalo())
		sums[c.Rank()] = Sum(f)
	})

	// All deposits survive: 8 interior + 2*(10+20), visible on both ranks.
	assert.Equal(t, 68.0, sums[0])
	assert.Equal(t, sums[0], sums[1])
}

func TestReductions(t *testing.T) {
	sums := make([]float64, 2)
	onRanks(2, func(c *comm.Comm) {
		l, err := layout.New(
			index.NewBox(8), []layout.Tag{layout.Parallel}, c,
		)
		require.NoError(t, err)
		f := New[float64](l)
		f.ForEach(func(idx []int, off int) {
			f.Data()[off] = float64(idx[0])
		})
		sums[c.Rank()] = Sum(f)

		assert.Equal(t, 0.0, Min(f))
		assert.Equal(t, 7.0, Max(f))
		assert.Equal(t, 7.0, Norm(f, 0))
	})
	assert.Equal(t, 28.0, sums[0])
	assert.Equal(t, sums[0], sums[1])
}

func TestLaplacianAccuracy(t *testing.T) {
	n := 32
	L := 1.0
	h := L / float64(n)
	k := 2 * math.Pi / L

	l := singleRankLayout(t, []int{n, n, n}, layout.AllPeriodic())
	f, lap := New[float64](l), New[float64](l)
	f.ForEach(func(idx []int, off int) {
		x := (float64(idx[0]) + 0.5) * h
		f.Data()[off] = math.Sin(k * x)
	})
	require.NoError(t, f.FillHalo())
	require.NoError(t, Laplacian(lap, f, []float64{h, h, h}))

	// The discrete Laplacian of sin(kx) is -keff^2 sin(kx) with
	// keff^2 = k^2 (1 + O((kh)^2)); check second-order convergence.
	maxErr := 0.0
	lap.ForEach(func(idx []int, off int) {
		x := (float64(idx[0]) + 0.5) * h
		want := -k * k * math.Sin(k*x)
		err := math.Abs(lap.Data()[off] - want)
		if err > maxErr {
			maxErr = err
		}
	})
	bound := k * k * (k * h) * (k * h) // comfortably above (kh)^2/12
	assert.Less(t, maxErr, bound)
}

func TestGradientOfLinearField(t *testing.T) {
	l := singleRankLayout(t, []int{8, 8},
		layout.WithBoundary(0, layout.NeumannZero),
		layout.WithBoundary(1, layout.NeumannZero),
		layout.WithBoundary(2, layout.NeumannZero),
		layout.WithBoundary(3, layout.NeumannZero),
	)
	h := []float64{0.5, 0.5}
	f := New[float64](l)
	f.ForEach(func(idx []int, off int) {
		f.Data()[off] = 3 * float64(idx[0]) * h[0]
	})
	require.NoError(t, f.FillHalo())

	grad := NewVec[float64](l, 2)
	require.NoError(t, Gradient(grad, f, h))

	// Interior cells away from the mirrored walls see exactly slope 3.
	grad[0].ForEach(func(idx []int, off int) {
		if idx[0] == 0 || idx[0] == 7 {
			return
		}
		assert.InDelta(t, 3.0, grad[0].Data()[off], 1e-12)
		assert.InDelta(t, 0.0, grad[1].Data()[off], 1e-12)
	})
}

func TestDivergence(t *testing.T) {
	l := singleRankLayout(t, []int{8, 8}, layout.AllPeriodic())
	h := []float64{0.5, 0.5}

	// A constant vector field has zero divergence everywhere.
	v := NewVec[float64](l, 2)
	v[0].AssignConst(3)
	v[1].AssignConst(-2)
	for c := range v {
		require.NoError(t, v[c].FillHalo())
	}

	div := New[float64](l)
	require.NoError(t, DivergenceForward(div, v, h))
	div.ForEach(func(idx []int, off int) {
		assert.InDelta(t, 0.0, div.Data()[off], 1e-13)
	})
	require.NoError(t, DivergenceBackward(div, v, h))
	div.ForEach(func(idx []int, off int) {
		assert.InDelta(t, 0.0, div.Data()[off], 1e-13)
	})
}

func TestTransferAndRemap(t *testing.T) {
	vals := make([][]float64, 2)
	onRanks(2, func(c *comm.Comm) {
		l, err := layout.New(
			index.NewBox(8), []layout.Tag{layout.Parallel}, c,
			layout.AllPeriodic(),
		)
		require.NoError(t, err)
		f := New[float64](l)
		f.ForEach(func(idx []int, off int) {
			f.Data()[off] = float64(idx[0])
		})

		// Shift the split point from 4 to 2 and migrate.
		l2, err := l.Rebuild([]index.Box{
			{{First: 0, Last: 1}}, {{First: 2, Last: 7}},
		})
		require.NoError(t, err)
		require.NoError(t, f.Remap(l2))

		assert.True(t, f.Local().Equal(l2.Domain(c.Rank())))
		got := []float64{}
		f.ForEach(func(idx []int, off int) {
			got = append(got, f.Data()[off])
		})
		vals[c.Rank()] = got
	})

	assert.Equal(t, []float64{0, 1}, vals[0])
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7}, vals[1])
}
