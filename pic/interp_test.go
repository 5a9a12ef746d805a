package pic

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
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

func periodicSetup(
	t *testing.T, c *comm.Comm, n int, boxWidth float64,
) (*layout.Layout, *mesh.Mesh) {
	dom := index.NewBox(n, n, n)
	tags := []layout.Tag{layout.Parallel, layout.Serial, layout.Serial}
	l, err := layout.New(dom, tags, c, layout.AllPeriodic())
	require.NoError(t, err)
	h := boxWidth / float64(n)
	m := mesh.New(dom, []float64{h, h, h}, []float64{0, 0, 0})
	return l, m
}

// Deposits conserve charge: a 5^3 grid, 1000 uniform particles of
// charge 0.5 each, and the deposited total is 500 under fp64.
func TestScatterConservation(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	l, m := periodicSetup(t, c, 5, 1.0)

	pc := particle.NewContainer(l, m)
	q := particle.NewFloat64("q")
	require.NoError(t, pc.Add(q))

	gen := rand.New(rand.NewSource(42))
	pc.Create(1000)
	for i := 0; i < 1000; i++ {
		for d := 0; d < 3; d++ {
			pc.R.Set(i, d, gen.Float64())
		}
		q.Data[i] = 0.5
	}

	rho := field.New[float64](l)
	require.NoError(t, Scatter(q, rho, pc.R, m))

	assert.InDelta(t, 500.0, field.Sum(rho), 1e-10)
}

func TestScatterConservationTwoRanks(t *testing.T) {
	sums := make([]float64, 2)
	onRanks(2, func(c *comm.Comm) {
		l, m := periodicSetup(t, c, 8, 1.0)
		pc := particle.NewContainer(l, m)
		q := particle.NewFloat64("q")
		require.NoError(t, pc.Add(q))

		// Different particles on each rank, some right at the subdomain
		// boundary so deposits cross ranks.
		gen := rand.New(rand.NewSource(int64(31 + c.Rank())))
		pc.Create(250)
		for i := 0; i < 250; i++ {
			for d := 0; d < 3; d++ {
				pc.R.Set(i, d, gen.Float64())
			}
			q.Data[i] = 1.25
		}
		require.NoError(t, pc.Update())

		rho := field.New[float64](l)
		require.NoError(t, Scatter(q, rho, pc.R, m))
		sums[c.Rank()] = field.Sum(rho)
	})
	assert.InDelta(t, 625.0, sums[0], 1e-10)
	assert.Equal(t, sums[0], sums[1])
}

// Particles placed exactly on cell centers give all their CIC weight to one
// node, so gather(scatter(q)) returns q exactly.
func TestGatherScatterIdentityOnNodes(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	n := 8
	l, m := periodicSetup(t, c, n, 1.0)
	h := 1.0 / float64(n)

	pc := particle.NewContainer(l, m)
	q := particle.NewFloat64("q")
	require.NoError(t, pc.Add(q))

	pc.Create(4)
	cells := [][3]int{{0, 0, 0}, {3, 5, 1}, {7, 7, 7}, {2, 2, 6}}
	for i, cell := range cells {
		for d := 0; d < 3; d++ {
			pc.R.Set(i, d, (float64(cell[d])+0.5)*h)
		}
		q.Data[i] = float64(i + 1)
	}

	rho := field.New[float64](l)
	require.NoError(t, Scatter(q, rho, pc.R, m))
	require.NoError(t, rho.FillHalo())

	got := particle.NewVec("got", 3)
	require.NoError(t, pc.Add(got))

	err := Gather(got, []*field.Field[float64]{rho, rho, rho}, pc.R, m)
	require.NoError(t, err)

	for i := range cells {
		assert.InDelta(t, q.Data[i], got.At(i, 0), 1e-12, "particle %d", i)
	}
}

func TestGatherInterpolatesLinearField(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	n := 8
	l, m := periodicSetup(t, c, n, 1.0)

	// E_x = 2x is linear, so CIC reproduces it exactly between nodes (away
	// from the periodic wrap).
	E := field.NewVec[float64](l, 3)
	E[0].ForEach(func(idx []int, off int) {
		x := (float64(idx[0]) + 0.5) * m.Spacing[0]
		E[0].Data()[off] = 2 * x
	})
	for c := range E {
		require.NoError(t, E[c].FillHalo())
	}

	pc := particle.NewContainer(l, m)
	Ep := particle.NewVec("E", 3)
	require.NoError(t, pc.Add(Ep))
	pc.Create(3)
	for i, x := range []float64{0.3, 0.4375, 0.55} {
		pc.R.Set(i, 0, x)
		pc.R.Set(i, 1, 0.5)
		pc.R.Set(i, 2, 0.5)
	}

	require.NoError(t, Gather(Ep, E, pc.R, m))
	for i, x := range []float64{0.3, 0.4375, 0.55} {
		assert.InDelta(t, 2*x, Ep.At(i, 0), 1e-12, "particle %d", i)
	}
}
