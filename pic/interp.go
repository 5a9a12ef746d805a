/*package pic couples particles to mesh fields: cloud-in-cell interpolation
in both directions and the leapfrog driver that sequences one time step.*/
package pic

import (
	"math"

	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/mesh"
	"github.com/phil-mansfield/picell/particle"
)

// cicCorners computes the CIC anchor cell and per-axis weights of one
// particle on a cell-centered mesh. The anchor is the lower of the 2^D
// enclosing nodes; frac holds the weight of the upper node per axis.
func cicCorners(
	m *mesh.Mesh, R *particle.Vec, i int, anchor []int, frac []float64,
) {
	for d := range anchor {
		g := (R.At(i, d)-m.Origin[d])/m.Spacing[d] - 0.5
		lo := math.Floor(g)
		anchor[d] = int(lo) + m.Domain[d].First
		frac[d] = g - lo
	}
}

// Scatter deposits the per-particle quantity q onto rho with CIC weights.
// Deposits landing in ghost cells are flushed back to their owners, so the
// field's ghost width must be at least 1. rho is not cleared first.
// Collective.
func Scatter(
	q *particle.Float64, rho *field.Field[float64], R *particle.Vec,
	m *mesh.Mesh,
) error {
	l := rho.Layout()
	if l.GhostWidth() < 1 {
		return errs.New("pic", "Scatter", errs.Configuration,
			"CIC scatter requires a ghost width of at least 1")
	}
	dim := l.Dim()
	anchor := make([]int, dim)
	frac := make([]float64, dim)
	node := make([]int, dim)

	n := R.Len()
	for i := 0; i < n; i++ {
		cicCorners(m, R, i, anchor, frac)
		for corner := 0; corner < 1<<dim; corner++ {
			w := q.Data[i]
			for d := 0; d < dim; d++ {
				if corner&(1<<d) != 0 {
					node[d] = anchor[d] + 1
					w *= frac[d]
				} else {
					node[d] = anchor[d]
					w *= 1 - frac[d]
				}
			}
			rho.Data()[rho.Offset(node)] += w
		}
	}
	return rho.FlushHalo()
}

// Gather interpolates the field components E onto the particles with the
// same CIC weights, writing into Ep. The field halos must have been filled;
// no communication happens here.
func Gather(
	Ep *particle.Vec, E []*field.Field[float64], R *particle.Vec,
	m *mesh.Mesh,
) error {
	if len(E) == 0 {
		return errs.New("pic", "Gather", errs.Configuration,
			"no field components to gather")
	}
	l := E[0].Layout()
	if l.GhostWidth() < 1 {
		return errs.New("pic", "Gather", errs.Configuration,
			"CIC gather requires a ghost width of at least 1")
	}
	dim := l.Dim()
	anchor := make([]int, dim)
	frac := make([]float64, dim)
	node := make([]int, dim)

	n := R.Len()
	for i := 0; i < n; i++ {
		cicCorners(m, R, i, anchor, frac)
		for c := range E {
			Ep.Set(i, c, 0)
		}
		for corner := 0; corner < 1<<dim; corner++ {
			w := 1.0
			for d := 0; d < dim; d++ {
				if corner&(1<<d) != 0 {
					node[d] = anchor[d] + 1
					w *= frac[d]
				} else {
					node[d] = anchor[d]
					w *= 1 - frac[d]
				}
			}
			for c := range E {
				off := E[c].Offset(node)
				Ep.Data[i*dim+c] += w * E[c].Data()[off]
			}
		}
	}
	return nil
}
