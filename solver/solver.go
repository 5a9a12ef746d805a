/*package solver provides the FFT-based electrostatic Poisson solvers:
fully periodic, open-boundary (Hockney and Vico-Greengard), and the P3M
hybrid. All of them take a source density field and write the potential,
the electric field E = -grad(phi), or both into caller-supplied fields.

Every solver walks the same state machine: UNINITIALIZED until the first
Initialize, PLANNED once transforms are planned, READY after the first
Solve. Handing a solver a field on a different layout than it was planned
for demotes it to UNINITIALIZED.*/
package solver

import (
	"math"

	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/params"
)

// Output selects what a Solve call writes.
type Output int

const (
	Sol Output = iota
	Grad
	SolAndGrad
)

// State is the solver lifecycle state.
type State int

const (
	Uninitialized State = iota
	Planned
	Ready
)

// common holds the configuration shared by every solver in the family.
type common struct {
	out   Output
	eps0  float64
	state State
}

func parseCommon(p *params.List) (common, error) {
	c := common{out: Grad, eps0: 1.0}

	name, err := params.GetOr(p, "output_type", "GRAD")
	if err != nil {
		return c, err
	}
	switch name {
	case "SOL":
		c.out = Sol
	case "GRAD":
		c.out = Grad
	case "SOL_AND_GRAD":
		c.out = SolAndGrad
	default:
		return c, errs.New("solver", "New", errs.Configuration,
			"unknown output_type '%s'", name)
	}

	if c.eps0, err = params.GetOr(p, "epsilon0", 1.0); err != nil {
		return c, err
	}
	return c, nil
}

// wantSol reports whether the potential output is requested.
func (c *common) wantSol() bool { return c.out == Sol || c.out == SolAndGrad }

// wantGrad reports whether the field output is requested.
func (c *common) wantGrad() bool { return c.out == Grad || c.out == SolAndGrad }

// wavenumber returns the angular wavenumber of integer mode m on an axis of
// n cells and physical extent ext. Modes above n/2 alias to negative
// frequencies; halved reports whether the axis stores only the non-negative
// half spectrum.
func wavenumber(m, n int, ext float64, halved bool) float64 {
	if !halved && m > n/2 {
		m -= n
	}
	return 2 * math.Pi * float64(m) / ext
}

// nyquist reports whether mode m is the unmatched Nyquist mode of an
// even-length axis. Spectral first derivatives zero it to keep the
// half-spectrum conjugate-symmetric.
func nyquist(m, n int) bool {
	return n%2 == 0 && (m == n/2 || m == -n/2)
}
