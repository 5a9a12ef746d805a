package solver

/* open.go is the free-space solver: Hockney's method on a doubled mesh with
a truncated real-space Green function, or the Vico-Greengard variant with
the analytically regularized spectral kernel. The Green function transform
is cached per layout. */

import (
	"math"

	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/fft"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
	"github.com/phil-mansfield/picell/params"
)

// Algorithm selects the open-boundary Green function.
type Algorithm int

const (
	Hockney Algorithm = iota
	Vico
)

// Open is the open-boundary (free-space) FFT Poisson solver.
type Open struct {
	common
	alg       Algorithm
	fftParams *params.List

	l  *layout.Layout
	m  *mesh.Mesh
	lD *layout.Layout // doubled domain

	plan   *fft.Plan
	ghat   *field.Field[complex128] // cached kernel spectrum
	rhoD   *field.Field[float64]
	outD   *field.Field[float64]
	rhoHat *field.Field[complex128]
	work   *field.Field[complex128]
}

// NewOpen builds an open-boundary solver. The algorithm key selects
// HOCKNEY (default) or VICO.
func NewOpen(p *params.List) (*Open, error) {
	c, err := parseCommon(p)
	if err != nil {
		return nil, err
	}
	s := &Open{common: c, fftParams: p}

	name, err := params.GetOr(p, "algorithm", "HOCKNEY")
	if err != nil {
		return nil, err
	}
	switch name {
	case "HOCKNEY":
		s.alg = Hockney
	case "VICO":
		s.alg = Vico
	default:
		return nil, errs.New("solver", "NewOpen", errs.Configuration,
			"unknown open-boundary algorithm '%s'", name)
	}
	return s, nil
}

// Initialize builds the doubled-domain layouts, plans the transforms, and
// computes and caches the Green function spectrum.
func (s *Open) Initialize(l *layout.Layout, m *mesh.Mesh) error {
	if l.Dim() != 3 {
		return errs.New("solver", "Initialize", errs.Configuration,
			"the open-boundary solver requires a 3-dimensional domain")
	}

	doubled := make([]int, l.Dim())
	for d, n := range l.Global().Lengths() {
		doubled[d] = 2 * n
	}
	lD, err := layout.New(
		index.NewBox(doubled...), l.Decomposition(), l.Comm(),
		layout.WithGhost(0),
	)
	if err != nil {
		return err
	}

	axis, err := params.GetOr(s.fftParams, "r2c_direction", 0)
	if err != nil {
		return err
	}
	hatLengths := append([]int{}, doubled...)
	hatLengths[axis] = doubled[axis]/2 + 1
	lDHat, err := layout.New(
		index.NewBox(hatLengths...), l.Decomposition(), l.Comm(),
		layout.WithGhost(0),
	)
	if err != nil {
		return err
	}

	plan, err := fft.NewRC(lD, lDHat, s.fftParams)
	if err != nil {
		return err
	}

	s.l, s.m, s.lD, s.plan = l, m, lD, plan
	s.rhoD = field.New[float64](lD)
	s.outD = field.New[float64](lD)
	s.rhoHat = field.New[complex128](lDHat)
	s.work = field.New[complex128](lDHat)
	s.ghat = field.New[complex128](lDHat)

	if err := s.computeGreen(axis); err != nil {
		return err
	}
	s.state = Planned
	return nil
}

// State returns the solver's lifecycle state.
func (s *Open) State() State { return s.state }

// OpenBoundary reports that this is a free-space solver, so drivers skip
// the neutralizing-background subtraction.
func (s *Open) OpenBoundary() bool { return true }

// computeGreen fills the cached kernel spectrum on the doubled domain.
func (s *Open) computeGreen(axis int) error {
	dim := s.lD.Dim()
	nD := s.lD.Global().Lengths()

	if s.alg == Vico {
		// Analytic truncated kernel: (1 - cos(L |k|)) / |k|^2 with the
		// truncation radius covering the original domain's diagonal.
		L2 := 0.0
		for d := 0; d < dim; d++ {
			L2 += s.m.Extent(d) * s.m.Extent(d)
		}
		L := math.Sqrt(L2)

		s.ghat.ForEach(func(idx []int, off int) {
			k2 := 0.0
			for d := 0; d < dim; d++ {
				k := wavenumber(idx[d], nD[d],
					2*s.m.Extent(d), d == axis)
				k2 += k * k
			}
			var g float64
			if k2 == 0 {
				g = L * L / 2
			} else {
				k := math.Sqrt(k2)
				g = (1 - math.Cos(L*k)) / k2
			}
			s.ghat.Data()[off] = complex(g/s.eps0, 0)
		})
		return nil
	}

	// Hockney: sample the truncated 1/(4 pi r) kernel with minimum-image
	// distances on the doubled domain and transform it. The r = 0 cell
	// takes the finite value 1/(4 pi h_min).
	hMin := s.m.Spacing[0]
	for _, h := range s.m.Spacing {
		if h < hMin {
			hMin = h
		}
	}

	g := field.New[float64](s.lD)
	g.ForEach(func(idx []int, off int) {
		r2 := 0.0
		for d := 0; d < dim; d++ {
			t := idx[d]
			if t > nD[d]/2 {
				t = nD[d] - t
			}
			dr := float64(t) * s.m.Spacing[d]
			r2 += dr * dr
		}
		r := math.Sqrt(r2)
		if r == 0 {
			r = hMin
		}
		g.Data()[off] = 1 / (4 * math.Pi * s.eps0 * r)
	})

	if err := s.plan.TransformRC(fft.Forward, g, s.ghat); err != nil {
		return err
	}

	// Undo the forward 1/M scaling and fold in the convolution volume
	// element, so that solve only multiplies spectra pointwise.
	scale := complex(float64(s.lD.Global().Size())*s.m.CellVolume(), 0)
	s.ghat.ForEach(func(idx []int, off int) {
		s.ghat.Data()[off] *= scale
	})
	return nil
}

// Solve computes the free-space potential and/or field of rho. rho, phi,
// and E live on the original (undoubled) layout.
func (s *Open) Solve(
	rho *field.Field[float64], phi *field.Field[float64],
	E []*field.Field[float64],
) error {
	if s.state == Uninitialized {
		return errs.New("solver", "Solve", errs.Configuration,
			"open solver used before Initialize")
	}
	if rho.Layout() != s.l {
		s.state = Uninitialized
		return errs.New("solver", "Solve", errs.LayoutMismatch,
			"rho is not on the solver's layout; reinitialize")
	}

	// Zero-pad onto the doubled domain.
	s.rhoD.Fill(0)
	if err := field.Transfer(s.rhoD, rho); err != nil {
		return err
	}
	if err := s.plan.TransformRC(fft.Forward, s.rhoD, s.rhoHat); err != nil {
		return err
	}

	s.rhoHat.ForEach(func(idx []int, off int) {
		s.rhoHat.Data()[off] *= s.ghat.Data()[off]
	})

	if s.wantSol() {
		if phi == nil || phi.Layout() != s.l {
			s.state = Uninitialized
			return errs.New("solver", "Solve", errs.LayoutMismatch,
				"phi is missing or not on the solver's layout")
		}
		if err := s.work.CopyFrom(s.rhoHat); err != nil {
			return err
		}
		err := s.plan.TransformRC(fft.Backward, s.outD, s.work)
		if err != nil {
			return err
		}
		if err := field.Transfer(phi, s.outD); err != nil {
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
		axis, _ := params.GetOr(s.fftParams, "r2c_direction", 0)
		nD := s.lD.Global().Lengths()
		for d := 0; d < s.l.Dim(); d++ {
			if E[d].Layout() != s.l {
				s.state = Uninitialized
				return errs.New("solver", "Solve", errs.LayoutMismatch,
					"E component %d is not on the solver's layout", d)
			}
			s.work.ForEach(func(idx []int, off int) {
				m := idx[d]
				if d != axis && m > nD[d]/2 {
					m -= nD[d]
				}
				if nyquist(m, nD[d]) {
					s.work.Data()[off] = 0
					return
				}
				k := wavenumber(idx[d], nD[d], 2*s.m.Extent(d), d == axis)
				s.work.Data()[off] = s.rhoHat.Data()[off] * complex(0, -k)
			})
			err := s.plan.TransformRC(fft.Backward, s.outD, s.work)
			if err != nil {
				return err
			}
			if err := field.Transfer(E[d], s.outD); err != nil {
				return err
			}
		}
	}

	s.state = Ready
	return nil
}
