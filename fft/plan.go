package fft

/* plan.go holds the per-layout transform plans. A plan stages the interior
of its field into a dense ghost-free buffer, walks the axes with the reshape
machinery, and copies the result back. Staging buffers are retained across
calls and grown monotonically. */

import (
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/params"
)

// Plan is an opaque per-layout, per-kind transform handle. Plans are not
// reentrant: one transform at a time.
type Plan struct {
	kind Kind
	cfg  Config
	l    *layout.Layout
	lOut *layout.Layout // RC only: the complex-side layout

	stageR []float64
	stageC []complex128
}

func newPlan(kind Kind, l *layout.Layout, p *params.List) (*Plan, error) {
	if l.Dim() > 3 {
		return nil, errs.New("fft", "New", errs.Configuration,
			"%d-dimensional transforms are unsupported", l.Dim())
	}
	cfg, err := parseParams(p, l.Dim())
	if err != nil {
		return nil, err
	}
	return &Plan{kind: kind, cfg: cfg, l: l}, nil
}

// NewCC plans an in-place complex-to-complex transform over l.
func NewCC(l *layout.Layout, p *params.List) (*Plan, error) {
	return newPlan(CC, l, p)
}

// NewSin plans an in-place sine (DST-I) transform over l.
func NewSin(l *layout.Layout, p *params.List) (*Plan, error) {
	return newPlan(Sin, l, p)
}

// NewCos plans an in-place cosine (DCT-I) transform over l.
func NewCos(l *layout.Layout, p *params.List) (*Plan, error) {
	return newPlan(Cos, l, p)
}

// NewRC plans a real-to-complex transform between distinct input and output
// layouts. The output layout's r2c axis must carry the halved length
// n/2 + 1; the other axes must match.
func NewRC(lIn, lOut *layout.Layout, p *params.List) (*Plan, error) {
	pl, err := newPlan(RC, lIn, p)
	if err != nil {
		return nil, err
	}
	a := pl.cfg.R2CAxis
	gIn, gOut := lIn.Global(), lOut.Global()
	for d := 0; d < lIn.Dim(); d++ {
		want := gIn[d].Len()
		if d == a {
			want = want/2 + 1
		}
		if gOut[d].Len() != want {
			return nil, errs.New("fft", "NewRC", errs.LayoutMismatch,
				"output axis %d has length %d, expected %d",
				d, gOut[d].Len(), want)
		}
	}
	if lIn.Comm().World() != lOut.Comm().World() {
		return nil, errs.New("fft", "NewRC", errs.LayoutMismatch,
			"input and output layouts live in different worlds")
	}
	pl.lOut = lOut
	return pl, nil
}

// OutputLayout returns the complex-side layout of an RC plan.
func (pl *Plan) OutputLayout() *layout.Layout { return pl.lOut }

// Config returns the parsed transform options.
func (pl *Plan) Config() Config { return pl.cfg }

func (pl *Plan) plan(l *layout.Layout, a int) axisPlan {
	return axisPlan{
		c: l.Comm(), global: l.Global(), domains: l.Domains(),
		local: l.Local(), a: a,
		commTag: pl.cfg.Comm, tagBase: 2 * a * tagStride,
	}
}

// stageIn copies a field's interior into a dense row-major buffer.
func stageIn[T field.Scalar](f *field.Field[T], buf []T) []T {
	n := f.Local().Size()
	if cap(buf) < n {
		buf = make([]T, n)
	}
	buf = buf[:n]
	i := 0
	f.ForEach(func(idx []int, off int) {
		buf[i] = f.Data()[off]
		i++
	})
	return buf
}

// stageOut copies a dense row-major buffer back into a field's interior.
func stageOut[T field.Scalar](f *field.Field[T], buf []T) {
	i := 0
	f.ForEach(func(idx []int, off int) {
		f.Data()[off] = buf[i]
		i++
	})
}

// Transform runs an in-place complex-to-complex transform. The forward
// direction scales by 1/N; the backward applies no scaling.
func (pl *Plan) Transform(dir Direction, f *field.Field[complex128]) error {
	if pl.kind != CC {
		return errs.New("fft", "Transform", errs.Configuration,
			"plan was built for a %s transform", pl.kind)
	}
	if err := checkDirection(dir); err != nil {
		return err
	}
	if f.Layout() != pl.l {
		return errs.New("fft", "Transform", errs.LayoutMismatch,
			"field is not on the plan's layout")
	}

	pl.stageC = stageIn(f, pl.stageC)
	dim := pl.l.Dim()
	for a := 0; a < dim; a++ {
		scale := complex(1, 0)
		if dir == Forward {
			scale = complex(1/float64(pl.l.Global()[a].Len()), 0)
		}
		err := transformAxis(pl.plan(pl.l, a), pl.stageC,
			func(line []complex128) {
				pl.cfg.Backend.CC(line, dir)
				if dir == Forward {
					for i := range line {
						line[i] *= scale
					}
				}
			})
		if err != nil {
			return errs.Wrap("fft", "Transform", errs.Backend, err)
		}
	}
	stageOut(f, pl.stageC)
	return nil
}

// TransformReal runs an in-place sine or cosine transform. The forward
// direction applies the scaling that makes forward-then-backward the
// identity; the backward applies none.
func (pl *Plan) TransformReal(dir Direction, f *field.Field[float64]) error {
	if pl.kind != Sin && pl.kind != Cos {
		return errs.New("fft", "TransformReal", errs.Configuration,
			"plan was built for a %s transform", pl.kind)
	}
	if err := checkDirection(dir); err != nil {
		return err
	}
	if f.Layout() != pl.l {
		return errs.New("fft", "TransformReal", errs.LayoutMismatch,
			"field is not on the plan's layout")
	}

	pl.stageR = stageIn(f, pl.stageR)
	dim := pl.l.Dim()
	for a := 0; a < dim; a++ {
		n := pl.l.Global()[a].Len()
		scale := 1.0
		if dir == Forward {
			// DST-I and DCT-I are self-inverse up to these factors.
			if pl.kind == Sin {
				scale = 1 / (2 * float64(n+1))
			} else {
				scale = 1 / (2 * float64(n-1))
			}
		}
		err := transformAxis(pl.plan(pl.l, a), pl.stageR,
			func(line []float64) {
				if pl.kind == Sin {
					pl.cfg.Backend.Sin(line)
				} else {
					pl.cfg.Backend.Cos(line)
				}
				if dir == Forward {
					for i := range line {
						line[i] *= scale
					}
				}
			})
		if err != nil {
			return errs.Wrap("fft", "TransformReal", errs.Backend, err)
		}
	}
	stageOut(f, pl.stageR)
	return nil
}

// TransformRC runs the real-to-complex transform pair. Forward reads re and
// writes co; backward reads co and writes re. The two fields live on the
// plan's input and output layouts.
func (pl *Plan) TransformRC(
	dir Direction, re *field.Field[float64], co *field.Field[complex128],
) error {
	if pl.kind != RC {
		return errs.New("fft", "TransformRC", errs.Configuration,
			"plan was built for a %s transform", pl.kind)
	}
	if err := checkDirection(dir); err != nil {
		return err
	}
	if re.Layout() != pl.l || co.Layout() != pl.lOut {
		return errs.New("fft", "TransformRC", errs.LayoutMismatch,
			"fields are not on the plan's input and output layouts")
	}

	a := pl.cfg.R2CAxis
	dim := pl.l.Dim()
	pReal := pl.plan(pl.l, a)
	pCplx := pl.plan(pl.lOut, a)

	if dir == Forward {
		pl.stageR = stageIn(re, pl.stageR)
		nOut := pl.lOut.Local().Size()
		if cap(pl.stageC) < nOut {
			pl.stageC = make([]complex128, nOut)
		}
		pl.stageC = pl.stageC[:nOut]

		n := pl.l.Global()[a].Len()
		err := transformAxisRC(pReal, pCplx, pl.stageR, pl.stageC,
			Forward, pl.cfg.Backend, 1/float64(n))
		if err != nil {
			return errs.Wrap("fft", "TransformRC", errs.Backend, err)
		}

		for d := 0; d < dim; d++ {
			if d == a {
				continue
			}
			scale := complex(1/float64(pl.lOut.Global()[d].Len()), 0)
			err := transformAxis(pl.plan(pl.lOut, d), pl.stageC,
				func(line []complex128) {
					pl.cfg.Backend.CC(line, Forward)
					for i := range line {
						line[i] *= scale
					}
				})
			if err != nil {
				return errs.Wrap("fft", "TransformRC", errs.Backend, err)
			}
		}
		stageOut(co, pl.stageC)
		return nil
	}

	pl.stageC = stageIn(co, pl.stageC)
	nIn := pl.l.Local().Size()
	if cap(pl.stageR) < nIn {
		pl.stageR = make([]float64, nIn)
	}
	pl.stageR = pl.stageR[:nIn]

	for d := dim - 1; d >= 0; d-- {
		if d == a {
			continue
		}
		err := transformAxis(pl.plan(pl.lOut, d), pl.stageC,
			func(line []complex128) {
				pl.cfg.Backend.CC(line, Backward)
			})
		if err != nil {
			return errs.Wrap("fft", "TransformRC", errs.Backend, err)
		}
	}

	err := transformAxisRC(pReal, pCplx, pl.stageR, pl.stageC,
		Backward, pl.cfg.Backend, 1)
	if err != nil {
		return errs.Wrap("fft", "TransformRC", errs.Backend, err)
	}
	stageOut(re, pl.stageR)
	return nil
}
