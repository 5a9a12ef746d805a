/*package balancer repartitions a layout with orthogonal recursive
bisection: the eligible axis of each region with the largest slab imbalance
is split where its prefix weight comes closest to the left half's share of
the rank budget (the weighted median when the budget is even), and the rank
budget recurses into the two halves. Every
rank computes the same partition from collective slab sums, so no layout
broadcast is needed afterwards.*/
package balancer

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/index"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/params"
	"github.com/phil-mansfield/picell/particle"
)

// ORB is the orthogonal-recursive-bisection load balancer.
type ORB struct {
	threshold float64
	axes      uint
	c         *comm.Comm
}

// New builds a balancer from its parameter list. threshold must be at
// least 1.0; the value 1.0 disables rebalancing. axes_eligible is a bitmask
// of the axes the balancer may split; zero means every parallel axis.
func New(p *params.List, c *comm.Comm) (*ORB, error) {
	threshold, err := params.GetOr(p, "threshold", 1.0)
	if err != nil {
		return nil, err
	}
	if threshold < 1.0 {
		return nil, errs.New("balancer", "New", errs.Configuration,
			"threshold %g < 1.0", threshold)
	}
	axes, err := params.GetOr(p, "axes_eligible", 0)
	if err != nil {
		return nil, err
	}
	return &ORB{threshold: threshold, axes: uint(axes), c: c}, nil
}

// Enabled reports whether rebalancing can ever trigger.
func (o *ORB) Enabled() bool { return o.threshold > 1.0 }

// ShouldRebalance reports whether the load imbalance max/mean exceeds the
// threshold. Collective.
func (o *ORB) ShouldRebalance(localLoad float64) bool {
	if !o.Enabled() {
		return false
	}
	sum := comm.AllReduce(o.c, comm.OpSum, []float64{localLoad})[0]
	max := comm.AllReduce(o.c, comm.OpMax, []float64{localLoad})[0]
	mean := sum / float64(o.c.Size())
	if mean == 0 {
		return false
	}
	return max/mean > o.threshold
}

// eligible reports whether the balancer may split axis d of the layout.
func (o *ORB) eligible(l *layout.Layout, d int) bool {
	if l.Decomposition()[d] != layout.Parallel {
		return false
	}
	return o.axes == 0 || o.axes&(1<<uint(d)) != 0
}

// Partition builds a new per-rank domain set by recursive bisection of the
// weight field. Collective: every rank must call it with its piece of the
// weight, and every rank returns the same boxes.
func (o *ORB) Partition(
	w *field.Field[float64], l *layout.Layout,
) ([]index.Box, error) {
	size := o.c.Size()
	boxes := make([]index.Box, size)
	if err := o.bisect(w, l, l.Global().Clone(), 0, size, boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

func (o *ORB) bisect(
	w *field.Field[float64], l *layout.Layout,
	region index.Box, rank0, m int, boxes []index.Box,
) error {
	if m == 1 {
		boxes[rank0] = region
		return nil
	}

	// Slab sums along each eligible axis; pick the one with the largest
	// imbalance.
	bestAxis, bestImbalance := -1, 0.0
	var bestSums []float64
	for d := 0; d < region.Dim(); d++ {
		if !o.eligible(l, d) || region[d].Len() < 2 {
			continue
		}
		sums := o.slabSums(w, region, d)
		mean := floats.Sum(sums) / float64(len(sums))
		imbalance := float64(region[d].Len())
		if mean > 0 {
			imbalance = floats.Max(sums) / mean
		}
		if bestAxis == -1 || imbalance > bestImbalance {
			bestAxis, bestImbalance, bestSums = d, imbalance, sums
		}
	}
	if bestAxis == -1 {
		return errs.New("balancer", "Partition", errs.Configuration,
			"region %s has no splittable axis for %d ranks", region, m)
	}

	// The split whose prefix weight is closest to the left rank budget's
	// share of the total.
	mLeft := m / 2
	prefix := make([]float64, len(bestSums))
	floats.CumSum(prefix, bestSums)
	target := prefix[len(prefix)-1] * float64(mLeft) / float64(m)

	cut, bestDist := 1, math.Inf(1)
	for i := 0; i < len(prefix)-1; i++ {
		d := math.Abs(prefix[i] - target)
		if d < bestDist {
			cut, bestDist = i+1, d
		}
	}

	lo, hi := region.Clone(), region.Clone()
	at := region[bestAxis].First + cut
	lo[bestAxis], hi[bestAxis] = region[bestAxis].Split(at)

	if err := o.bisect(w, l, lo, rank0, mLeft, boxes); err != nil {
		return err
	}
	return o.bisect(w, l, hi, rank0+mLeft, m-mLeft, boxes)
}

// slabSums returns the global per-slab weight totals of region along axis
// d. Collective.
func (o *ORB) slabSums(
	w *field.Field[float64], region index.Box, d int,
) []float64 {
	local := make([]float64, region[d].Len())
	overlap := w.Local().Intersect(region)
	if !overlap.Empty() {
		w.ForEach(func(idx []int, off int) {
			if !overlap.Contains(idx) {
				return
			}
			local[idx[d]-region[d].First] += w.Data()[off]
		})
	}
	return comm.AllReduce(o.c, comm.OpSum, local)
}

// Repartition partitions on the weight field, rebuilds the layout, and
// migrates the given fields and particle container. It returns the new
// layout; the solver attached to the old layout must be reinitialized by
// the caller.
func (o *ORB) Repartition(
	w *field.Field[float64], l *layout.Layout,
	fields []*field.Field[float64], pc *particle.Container,
) (*layout.Layout, error) {
	boxes, err := o.Partition(w, l)
	if err != nil {
		return nil, err
	}
	nl, err := l.Rebuild(boxes)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if err := f.Remap(nl); err != nil {
			return nil, err
		}
	}
	if pc != nil {
		if err := pc.Rebind(nl); err != nil {
			return nil, err
		}
		if err := pc.Update(); err != nil {
			return nil, err
		}
	}
	return nl, nil
}
