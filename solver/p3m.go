package solver

/* p3m.go is the particle-particle/particle-mesh hybrid: the mesh part is
the periodic spectral solve with a screened Green function, and the
short-range part applies the complementary erfc kernel directly to particle
pairs within the cutoff.

The short-range sum runs over a local cell list; pairs straddling a rank
boundary are not closed, so the term is configurable and off unless a
positive cutoff is supplied. */

import (
	"math"

	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
	"github.com/phil-mansfield/picell/params"
	"github.com/phil-mansfield/picell/particle"
)

// screenFactor is the long-range screening e^(-alpha^2 |k|^2 / 4) shared by
// the P3M mesh part.
func screenFactor(k2, alpha float64) float64 {
	return math.Exp(-alpha * alpha * k2 / 4)
}

// P3M is the particle-particle/particle-mesh solver. It requires a
// 3-dimensional domain.
type P3M struct {
	mesh  *Periodic
	alpha float64
	rcut  float64
}

// NewP3M builds a P3M solver. The r_cutoff key enables the short-range
// term; alpha defaults to r_cutoff/4, which makes the short-range force
// vanish at the cutoff to single precision.
func NewP3M(p *params.List) (*P3M, error) {
	meshPart, err := NewPeriodic(p)
	if err != nil {
		return nil, err
	}
	s := &P3M{mesh: meshPart}

	if s.rcut, err = params.GetOr(p, "r_cutoff", 0.0); err != nil {
		return nil, err
	}
	if s.alpha, err = params.GetOr(p, "alpha", s.rcut/4); err != nil {
		return nil, err
	}
	if s.rcut < 0 {
		return nil, errs.New("solver", "NewP3M", errs.Configuration,
			"negative cutoff %g", s.rcut)
	}
	if s.alpha > 0 {
		meshPart.setScreen(s.alpha)
	}
	return s, nil
}

// Initialize plans the mesh-part transforms. P3M only supports D = 3.
func (s *P3M) Initialize(l *layout.Layout, m *mesh.Mesh) error {
	if l.Dim() != 3 {
		return errs.New("solver", "Initialize", errs.Configuration,
			"P3M requires a 3-dimensional domain, got %d", l.Dim())
	}
	return s.mesh.Initialize(l, m)
}

// State returns the solver's lifecycle state.
func (s *P3M) State() State { return s.mesh.State() }

// OpenBoundary reports false: the P3M mesh part is periodic, so drivers
// subtract the neutralizing background.
func (s *P3M) OpenBoundary() bool { return false }

// Solve runs the screened mesh solve.
func (s *P3M) Solve(
	rho *field.Field[float64], phi *field.Field[float64],
	E []*field.Field[float64],
) error {
	return s.mesh.Solve(rho, phi, E)
}

// ShortRange accumulates the short-range pair field onto Ep for every local
// particle pair within the cutoff. A zero cutoff disables the term. Pairs
// whose members live on different ranks are not closed here.
func (s *P3M) ShortRange(
	pc *particle.Container, q *particle.Float64, Ep *particle.Vec,
) error {
	if s.rcut == 0 {
		return nil
	}
	m := pc.Mesh()
	l := pc.Layout()
	n := pc.LocalNum()

	// Bin particles into local cells no smaller than the cutoff.
	local := l.Local()
	var k [3]int
	var w, lo [3]float64
	bins := 1
	for d := 0; d < 3; d++ {
		extent := float64(local[d].Len()) * m.Spacing[d]
		lo[d] = m.Origin[d] + float64(local[d].First-l.Global()[d].First)*
			m.Spacing[d]
		k[d] = int(extent / s.rcut)
		if k[d] < 1 {
			k[d] = 1
		}
		w[d] = extent / float64(k[d])
		bins *= k[d]
	}

	head := make([]int, bins)
	next := make([]int, n)
	for b := range head {
		head[b] = -1
	}
	binOf := func(i int) int {
		b := 0
		for d := 0; d < 3; d++ {
			c := int((pc.R.At(i, d) - lo[d]) / w[d])
			if c < 0 {
				c = 0
			}
			if c >= k[d] {
				c = k[d] - 1
			}
			b = b*k[d] + c
		}
		return b
	}
	for i := 0; i < n; i++ {
		b := binOf(i)
		next[i] = head[b]
		head[b] = i
	}

	inv4pi := 1 / (4 * math.Pi * s.mesh.eps0)
	var ext [3]float64
	var periodic [3]bool
	for d := 0; d < 3; d++ {
		ext[d] = m.Extent(d)
		periodic[d] = l.PeriodicAxis(d)
	}

	for bx := 0; bx < k[0]; bx++ {
		for by := 0; by < k[1]; by++ {
			for bz := 0; bz < k[2]; bz++ {
				b := (bx*k[1]+by)*k[2] + bz
				for i := head[b]; i >= 0; i = next[i] {
					for _, nx := range binNeighbors(bx, k[0]) {
						for _, ny := range binNeighbors(by, k[1]) {
							for _, nz := range binNeighbors(bz, k[2]) {
								nb := (nx*k[1]+ny)*k[2] + nz
								for j := head[nb]; j >= 0; j = next[j] {
									if j == i {
										continue
									}
									s.pairForce(pc, q, Ep, i, j,
										ext, periodic, inv4pi)
								}
							}
						}
					}
				}
			}
		}
	}
	return nil
}

// binNeighbors returns the distinct wrapped bin indices within one bin of
// c. Axes with fewer than three bins collapse duplicates so no pair is
// visited twice.
func binNeighbors(c, k int) []int {
	out := make([]int, 0, 3)
	for d := -1; d <= 1; d++ {
		n := ((c+d)%k + k) % k
		dup := false
		for _, o := range out {
			if o == n {
				dup = true
			}
		}
		if !dup {
			out = append(out, n)
		}
	}
	return out
}

func (s *P3M) pairForce(
	pc *particle.Container, q *particle.Float64, Ep *particle.Vec,
	i, j int, ext [3]float64, periodic [3]bool, inv4pi float64,
) {
	var dr [3]float64
	r2 := 0.0
	for d := 0; d < 3; d++ {
		x := pc.R.At(i, d) - pc.R.At(j, d)
		if periodic[d] {
			if x > ext[d]/2 {
				x -= ext[d]
			}
			if x < -ext[d]/2 {
				x += ext[d]
			}
		}
		dr[d] = x
		r2 += x * x
	}
	if r2 == 0 || r2 > s.rcut*s.rcut {
		return
	}
	r := math.Sqrt(r2)

	// Complement of the mesh part's screened interaction.
	f := math.Erfc(r/s.alpha)/r2 +
		2/(s.alpha*math.Sqrt(math.Pi))*math.Exp(-r2/(s.alpha*s.alpha))/r
	scale := inv4pi * q.Data[j] * f / r
	for d := 0; d < 3; d++ {
		Ep.Data[i*3+d] += scale * dr[d]
	}
}
