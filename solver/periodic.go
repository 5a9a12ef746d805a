package solver

/* periodic.go is the fully periodic spectral solver: forward real-to-complex
transform of the density, pointwise multiply by the periodic Green function
1/(eps0 |k|^2) with the zero mode pinned to zero, and inverse transforms into
the potential and/or the spectral gradient. */

import (
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/fft"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
	"github.com/phil-mansfield/picell/params"
)

// Periodic is the fully periodic FFT Poisson solver.
type Periodic struct {
	common
	fftParams *params.List
	screen    float64 // screening length; 0 means bare Coulomb

	l    *layout.Layout
	m    *mesh.Mesh
	lHat *layout.Layout
	plan *fft.Plan

	rhoHat *field.Field[complex128]
	work   *field.Field[complex128]
}

// NewPeriodic builds a periodic solver from its parameter list. FFT keys in
// the list are forwarded to the transform plans.
func NewPeriodic(p *params.List) (*Periodic, error) {
	c, err := parseCommon(p)
	if err != nil {
		return nil, err
	}
	return &Periodic{common: c, fftParams: p}, nil
}

// Initialize plans the transforms for a layout and mesh, entering the
// PLANNED state. It must be called again after a layout change.
func (s *Periodic) Initialize(l *layout.Layout, m *mesh.Mesh) error {
	axis, err := params.GetOr(s.fftParams, "r2c_direction", 0)
	if err != nil {
		return err
	}
	lengths := l.Global().Lengths()
	lengths[axis] = lengths[axis]/2 + 1

	lHat, err := layout.New(
		index.NewBox(lengths...), l.Decomposition(), l.Comm(),
		layout.WithGhost(0),
	)
	if err != nil {
		return err
	}
	plan, err := fft.NewRC(l, lHat, s.fftParams)
	if err != nil {
		return err
	}

	s.l, s.m, s.lHat, s.plan = l, m, lHat, plan
	s.rhoHat = field.New[complex128](lHat)
	s.work = field.New[complex128](lHat)
	s.state = Planned
	return nil
}

// State returns the solver's lifecycle state.
func (s *Periodic) State() State { return s.state }

// OpenBoundary reports whether the solver is a free-space solver. The
// periodic solver is not, so drivers subtract the neutralizing background.
func (s *Periodic) OpenBoundary() bool { return false }

// setScreen installs a screening length; used by the P3M mesh part.
func (s *Periodic) setScreen(alpha float64) { s.screen = alpha }

// Solve computes the potential and/or electric field of rho per the
// configured output type. rho must be on the layout the solver was
// initialized with; otherwise the solver demotes itself to UNINITIALIZED.
func (s *Periodic) Solve(
	rho *field.Field[float64], phi *field.Field[float64],
	E []*field.Field[float64],
) error {
	if s.state == Uninitialized {
		return errs.New("solver", "Solve", errs.Configuration,
			"periodic solver used before Initialize")
	}
	if rho.Layout() != s.l {
		s.state = Uninitialized
		return errs.New("solver", "Solve", errs.LayoutMismatch,
			"rho is not on the solver's layout; reinitialize")
	}

	if err := s.plan.TransformRC(fft.Forward, rho, s.rhoHat); err != nil {
		return err
	}
	s.applyGreen()

	if s.wantSol() {
		if phi == nil || phi.Layout() != s.l {
			s.state = Uninitialized
			return errs.New("solver", "Solve", errs.LayoutMismatch,
				"phi is missing or not on the solver's layout")
		}
		if err := s.work.CopyFrom(s.rhoHat); err != nil {
			return err
		}
		if err := s.plan.TransformRC(fft.Backward, phi, s.work); err != nil {
			return err
		}
	}

	if s.wantGrad() {
		if len(E) != s.l.Dim() {
			s.state = Uninitialized
			return errs.New("solver", "Solve", errs.LayoutMismatch,
				"%d E components for a %d-dimensional solve",
				len(E), s.l.Dim())
		}
		for d := 0; d < s.l.Dim(); d++ {
			if E[d].Layout() != s.l {
				s.state = Uninitialized
				return errs.New("solver", "Solve", errs.LayoutMismatch,
					"E component %d is not on the solver's layout", d)
			}
			s.spectralGradient(d)
			err := s.plan.TransformRC(fft.Backward, E[d], s.work)
			if err != nil {
				return err
			}
		}
	}

	s.state = Ready
	return nil
}

// applyGreen multiplies rhoHat by the periodic (optionally screened) Green
// function, pinning the zero mode to zero so the potential has zero mean.
func (s *Periodic) applyGreen() {
	axis, _ := params.GetOr(s.fftParams, "r2c_direction", 0)
	dim := s.l.Dim()
	nFull := s.l.Global().Lengths()

	s.rhoHat.ForEach(func(idx []int, off int) {
		k2 := 0.0
		zero := true
		for d := 0; d < dim; d++ {
			k := wavenumber(idx[d], nFull[d], s.m.Extent(d), d == axis)
			k2 += k * k
			zero = zero && idx[d] == 0
		}
		if zero {
			s.rhoHat.Data()[off] = 0
			return
		}
		g := 1 / (s.eps0 * k2)
		if s.screen > 0 {
			g *= screenFactor(k2, s.screen)
		}
		s.rhoHat.Data()[off] *= complex(g, 0)
	})
}

// spectralGradient writes -i k_d rhoHat into the work field. Unmatched
// Nyquist modes are zeroed to keep the inverse transform real.
func (s *Periodic) spectralGradient(d int) {
	axis, _ := params.GetOr(s.fftParams, "r2c_direction", 0)
	nFull := s.l.Global().Lengths()

	s.work.ForEach(func(idx []int, off int) {
		m := idx[d]
		if !(d == axis) && m > nFull[d]/2 {
			m -= nFull[d]
		}
		if nyquist(m, nFull[d]) {
			s.work.Data()[off] = 0
			return
		}
		k := wavenumber(idx[d], nFull[d], s.m.Extent(d), d == axis)
		s.work.Data()[off] = s.rhoHat.Data()[off] * complex(0, -k)
	})
}
