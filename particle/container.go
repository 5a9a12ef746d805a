package particle

/* container.go owns the attribute bag and the particle lifecycle: bulk
create, bulk destroy, and redistribution across ranks keyed by position. */

import (
	"math"

	"github.com/phil-mansfield/picell/comm"
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
)

// Container owns a set of equally sized particle attributes. The position
// attribute R is distinguished: after Update every particle's R lies in the
// owning rank's subdomain, up to half a cell of tolerance at the walls.
type Container struct {
	l *layout.Layout
	m *mesh.Mesh

	attribs []Attrib
	byName  map[string]Attrib
	n       int

	// R is the particle position, registered at construction.
	R *Vec
	// ID is the invariant particle identity, registered at construction.
	ID *Uint64

	nextID uint64
}

// NewContainer creates an empty container bound to a spatial layout and its
// mesh. The position and ID attributes are registered automatically.
func NewContainer(l *layout.Layout, m *mesh.Mesh) *Container {
	c := &Container{
		l: l, m: m,
		byName: map[string]Attrib{},
	}
	c.R = NewVec("R", l.Dim())
	c.ID = NewUint64("id")
	c.mustAdd(c.R)
	c.mustAdd(c.ID)
	return c
}

// Add registers an attribute. Registration order is fixed and defines the
// wire layout for redistribution, so every rank must register the same
// attributes in the same order.
func (c *Container) Add(a Attrib) error {
	if _, ok := c.byName[a.Name()]; ok {
		return errs.New("particle", "Add", errs.Configuration,
			"an attribute named '%s' is already registered", a.Name())
	}
	a.resize(c.n)
	c.attribs = append(c.attribs, a)
	c.byName[a.Name()] = a
	return nil
}

func (c *Container) mustAdd(a Attrib) {
	if err := c.Add(a); err != nil {
		panic(err)
	}
}

// Attrib returns a registered attribute by name, or nil.
func (c *Container) Attrib(name string) Attrib { return c.byName[name] }

// Layout returns the container's spatial layout.
func (c *Container) Layout() *layout.Layout { return c.l }

// Mesh returns the container's mesh.
func (c *Container) Mesh() *mesh.Mesh { return c.m }

// LocalNum returns the number of particles on this rank.
func (c *Container) LocalNum() int { return c.n }

// TotalNum returns the number of particles across all ranks. Collective.
func (c *Container) TotalNum() uint64 {
	local := uint64(c.n)
	return comm.AllReduce(c.l.Comm(), comm.OpSum, []uint64{local})[0]
}

// Create appends n particle slots. New slots are zeroed except for their
// IDs, which are fresh and globally unique (rank-interleaved).
func (c *Container) Create(n int) {
	old := c.n
	c.n += n
	for _, a := range c.attribs {
		a.resize(c.n)
	}

	rank, size := uint64(c.l.Comm().Rank()), uint64(c.l.Comm().Size())
	for i := old; i < c.n; i++ {
		c.ID.Data[i] = c.nextID*size + rank
		c.nextID++
	}
}

// Destroy removes every particle whose mask entry is true, compacting the
// survivors in place while preserving their order.
func (c *Container) Destroy(mask []bool) {
	keep := make([]int, 0, c.n)
	for i := 0; i < c.n; i++ {
		if !mask[i] {
			keep = append(keep, i)
		}
	}
	for _, a := range c.attribs {
		a.compact(keep)
	}
	c.n = len(keep)
}

// Rebind attaches the container to a replacement layout with the same
// global domain (after load balancing) without moving any data; the caller
// follows with Update to route particles to their new owners.
func (c *Container) Rebind(l *layout.Layout) error {
	if !c.l.Global().Equal(l.Global()) {
		return errs.New("particle", "Rebind", errs.LayoutMismatch,
			"replacement layout has a different global domain")
	}
	c.l = l
	return nil
}

// Update redistributes particles whose positions left the local subdomain.
// Positions along periodic axes are wrapped into the global extent first.
// Collective: every rank must call it. A particle outside the global domain
// on a non-periodic axis is a DomainError.
func (c *Container) Update() error {
	world := c.l.Comm()
	size := world.Size()
	me := world.Rank()
	dim := c.l.Dim()
	global := c.l.Global()

	cell := make([]int, dim)
	dest := make([]int, c.n)
	counts := make([]int, size)

	for i := 0; i < c.n; i++ {
		for d := 0; d < dim; d++ {
			x := c.R.At(i, d)
			if c.l.PeriodicAxis(d) {
				lo := c.m.Origin[d]
				ext := c.m.Extent(d)
				x = math.Mod(x-lo, ext)
				if x < 0 {
					x += ext
				}
				x += lo
				c.R.Set(i, d, x)
			}
			f := math.Floor((x - c.m.Origin[d]) / c.m.Spacing[d])
			j := int(f)
			// Half a cell of tolerance at the walls.
			if j < global[d].First {
				if x-c.m.Origin[d] < -0.5*c.m.Spacing[d] {
					return errs.New("particle", "Update", errs.Domain,
						"particle %d at %g is outside the global domain "+
							"along axis %d", c.ID.Data[i], x, d)
				}
				j = global[d].First
			}
			if j > global[d].Last {
				over := x - c.m.Origin[d] -
					float64(global[d].Last+1)*c.m.Spacing[d]
				if over > 0.5*c.m.Spacing[d] {
					return errs.New("particle", "Update", errs.Domain,
						"particle %d at %g is outside the global domain "+
							"along axis %d", c.ID.Data[i], x, d)
				}
				j = global[d].Last
			}
			cell[d] = j
		}
		r := c.l.OwnerOf(cell)
		dest[i] = r
		counts[r]++
	}

	// Selection lists per destination, in stable particle order.
	sel := make([][]int, size)
	for r := 0; r < size; r++ {
		if r != me && counts[r] > 0 {
			sel[r] = make([]int, 0, counts[r])
		}
	}
	mask := make([]bool, c.n)
	for i := 0; i < c.n; i++ {
		if dest[i] != me {
			sel[dest[i]] = append(sel[dest[i]], i)
			mask[i] = true
		}
	}

	// One all-to-all-v per attribute, in registration order.
	recvBufs := make([][][]float64, len(c.attribs))
	for ai, a := range c.attribs {
		send := make([][]float64, size)
		for r := 0; r < size; r++ {
			if len(sel[r]) == 0 {
				continue
			}
			buf := make([]float64, 0, len(sel[r])*a.wireWidth())
			a.packTo(sel[r], &buf)
			send[r] = buf
		}
		recv, err := comm.AllToAllv(world, send)
		if err != nil {
			return err
		}
		recvBufs[ai] = recv
	}

	c.Destroy(mask)

	added := 0
	for ai, a := range c.attribs {
		got := 0
		for src := 0; src < size; src++ {
			a.unpackAppend(recvBufs[ai][src])
			got += len(recvBufs[ai][src]) / a.wireWidth()
		}
		added = got
	}
	c.n += added
	return nil
}
