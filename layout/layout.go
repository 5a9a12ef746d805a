/*package layout tracks which rank owns which part of the global index
domain, along with ghost widths and per-face boundary conditions. A Layout is
immutable once built; the load balancer produces replacements with Rebuild
and attached fields migrate explicitly.*/
package layout

import (
	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/index"
)

// Tag says whether an axis may be split across ranks.
type Tag int

const (
	Parallel Tag = iota
	Serial
)

// BC is the boundary policy bound to one face of the global domain.
type BC int

const (
	None BC = iota
	Periodic
	DirichletZero
	NeumannZero
)

// Layout partitions a global box over the ranks of a communicator.
// Faces are numbered 2*axis for the low side and 2*axis + 1 for the high
// side.
type Layout struct {
	global  index.Box
	tags    []Tag
	bcs     []BC
	ghost   int
	comm    *comm.Comm
	domains []index.Box
}

// Option adjusts layout construction.
type Option func(*Layout)

// WithGhost sets the ghost halo width. The default is 1.
func WithGhost(g int) Option {
	return func(l *Layout) { l.ghost = g }
}

// WithBoundary binds a boundary policy to one face.
func WithBoundary(face int, bc BC) Option {
	return func(l *Layout) { l.bcs[face] = bc }
}

// AllPeriodic binds the periodic policy to every face.
func AllPeriodic() Option {
	return func(l *Layout) {
		for f := range l.bcs {
			l.bcs[f] = Periodic
		}
	}
}

// New partitions global across the ranks of c. Axes tagged Parallel are
// split with balanced orthogonal splitting; Serial axes are kept whole on
// every rank.
func New(
	global index.Box, tags []Tag, c *comm.Comm, opts ...Option,
) (*Layout, error) {
	dim := global.Dim()
	if dim < 1 || dim > 3 {
		return nil, errs.New("layout", "New", errs.Configuration,
			"%d-dimensional domains are unsupported", dim)
	}
	if len(tags) != dim {
		return nil, errs.New("layout", "New", errs.Configuration,
			"%d decomposition tags for a %d-dimensional domain",
			len(tags), dim)
	}

	l := &Layout{
		global: global.Clone(),
		tags:   append([]Tag{}, tags...),
		bcs:    make([]BC, 2*dim),
		ghost:  1,
		comm:   c,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.ghost < 0 {
		return nil, errs.New("layout", "New", errs.Configuration,
			"negative ghost width %d", l.ghost)
	}

	splittable := make([]bool, dim)
	for d := range tags {
		splittable[d] = tags[d] == Parallel
	}
	domains, _, err := index.SplitBalanced(global, splittable, c.Size())
	if err != nil {
		return nil, err
	}
	l.domains = domains
	return l, nil
}

// Global returns the global index domain.
func (l *Layout) Global() index.Box { return l.global }

// Local returns the calling rank's subdomain.
func (l *Layout) Local() index.Box { return l.domains[l.comm.Rank()] }

// Domain returns the subdomain owned by the given rank.
func (l *Layout) Domain(rank int) index.Box { return l.domains[rank] }

// Domains returns every rank's subdomain, indexed by rank.
func (l *Layout) Domains() []index.Box { return l.domains }

// GhostWidth returns the halo width.
func (l *Layout) GhostWidth() int { return l.ghost }

// Boundary returns the policy bound to a global face.
func (l *Layout) Boundary(face int) BC { return l.bcs[face] }

// Decomposition returns the per-axis tags.
func (l *Layout) Decomposition() []Tag { return l.tags }

// Comm returns the communicator the layout was built over.
func (l *Layout) Comm() *comm.Comm { return l.comm }

// Dim returns the number of axes.
func (l *Layout) Dim() int { return l.global.Dim() }

// PeriodicAxis reports whether both faces of axis d are periodic.
func (l *Layout) PeriodicAxis(d int) bool {
	return l.bcs[2*d] == Periodic && l.bcs[2*d+1] == Periodic
}

// OwnerOf returns the rank owning the cell at idx, or -1 if idx is outside
// the global domain.
func (l *Layout) OwnerOf(idx []int) int {
	if !l.global.Contains(idx) {
		return -1
	}
	for r, dom := range l.domains {
		if dom.Contains(idx) {
			return r
		}
	}
	return -1
}

// Neighbors returns, for each face of the local subdomain, the rank that
// owns the cell just beyond the face's low corner, or -1 when the face
// touches a non-periodic global boundary. Periodic faces wrap.
func (l *Layout) Neighbors() []int {
	dim := l.Dim()
	local := l.Local()
	out := make([]int, 2*dim)
	probe := make([]int, dim)

	for face := 0; face < 2*dim; face++ {
		axis, side := face/2, face%2
		for d := 0; d < dim; d++ {
			probe[d] = local[d].First
		}
		if side == 0 {
			probe[axis] = local[axis].First - 1
		} else {
			probe[axis] = local[axis].Last + 1
		}
		if !l.global[axis].Contains(probe[axis]) {
			if !l.PeriodicAxis(axis) {
				out[face] = -1
				continue
			}
			n := l.global[axis].Len()
			if side == 0 {
				probe[axis] += n
			} else {
				probe[axis] -= n
			}
		}
		out[face] = l.OwnerOf(probe)
	}
	return out
}

// Rebuild returns a new layout with the same boundary policy, ghost width,
// and communicator, but the given per-rank domains. The domains must cover
// the global box exactly once.
func (l *Layout) Rebuild(domains []index.Box) (*Layout, error) {
	if len(domains) != l.comm.Size() {
		return nil, errs.New("layout", "Rebuild", errs.Configuration,
			"%d domains for %d ranks", len(domains), l.comm.Size())
	}
	total := 0
	for i, d := range domains {
		total += d.Size()
		for j := i + 1; j < len(domains); j++ {
			if !d.Intersect(domains[j]).Empty() {
				return nil, errs.New("layout", "Rebuild", errs.Configuration,
					"domains of ranks %d and %d overlap", i, j)
			}
		}
	}
	if total != l.global.Size() {
		return nil, errs.New("layout", "Rebuild", errs.Configuration,
			"domains cover %d cells of a %d-cell global domain",
			total, l.global.Size())
	}

	out := &Layout{
		global:  l.global,
		tags:    l.tags,
		bcs:     l.bcs,
		ghost:   l.ghost,
		comm:    l.comm,
		domains: make([]index.Box, len(domains)),
	}
	for i := range domains {
		out.domains[i] = domains[i].Clone()
	}
	return out, nil
}
