package field

/* stencil.go holds the derivative stencils. They read ghost cells, so the
source field's halo must be filled first. */

import (
	"github.com/phil-mansfield/picell/errs"
)

// Gradient writes the centered second-order gradient of src into the
// component fields dst. dst must have one field per axis, all on src's
// layout.
func Gradient(dst []*Field[float64], src *Field[float64], h []float64) error {
	if len(dst) != src.l.Dim() {
		return errs.New("field", "Gradient", errs.LayoutMismatch,
			"%d destination components for a %d-dimensional field",
			len(dst), src.l.Dim())
	}
	for a := range dst {
		if err := GradientAxis(dst[a], src, a, h[a]); err != nil {
			return err
		}
	}
	return nil
}

// GradientAxis writes the centered difference of src along one axis into
// dst.
func GradientAxis(dst, src *Field[float64], axis int, h float64) error {
	return dst.Assign(Scale(
		1/(2*h),
		Sub(Shifted(src, axis, 1), Shifted(src, axis, -1)),
	))
}

// Laplacian writes the 2D+1-point discrete Laplacian of src into dst.
func Laplacian(dst, src *Field[float64], h []float64) error {
	if !dst.sameShape(src) {
		return errs.New("field", "Laplacian", errs.LayoutMismatch,
			"source and destination are on different layouts")
	}
	dim := src.l.Dim()

	var e Expr[float64]
	for a := 0; a < dim; a++ {
		term := Scale(
			1/(h[a]*h[a]),
			Add(
				Add(Shifted(src, a, 1), Shifted(src, a, -1)),
				Scale(-2, Ref(src)),
			),
		)
		if e == nil {
			e = term
		} else {
			e = Add(e, term)
		}
	}
	return dst.Assign(e)
}

// DivergenceForward writes the forward-difference divergence of the vector
// field src into dst.
func DivergenceForward(
	dst *Field[float64], src []*Field[float64], h []float64,
) error {
	return divergence(dst, src, h, 1, 0)
}

// DivergenceBackward writes the backward-difference divergence of the
// vector field src into dst.
func DivergenceBackward(
	dst *Field[float64], src []*Field[float64], h []float64,
) error {
	return divergence(dst, src, h, 0, -1)
}

func divergence(
	dst *Field[float64], src []*Field[float64], h []float64, hi, lo int,
) error {
	if len(src) != dst.l.Dim() {
		return errs.New("field", "Divergence", errs.LayoutMismatch,
			"%d components for a %d-dimensional field",
			len(src), dst.l.Dim())
	}

	var e Expr[float64]
	for a := range src {
		term := Scale(
			1/h[a],
			Sub(Shifted(src[a], a, hi), Shifted(src[a], a, lo)),
		)
		if e == nil {
			e = term
		} else {
			e = Add(e, term)
		}
	}
	return dst.Assign(e)
}
