/*package mesh maps index space onto physical coordinates through a uniform
Cartesian mesh.*/
package mesh

import (
	"math"

	"github.com/phil-mansfield/picell/index"
)

// Centering says whether field values live at cell centers or cell vertices.
// It is fixed per field.
type Centering int

const (
	Cell Centering = iota
	Vertex
)

// Mesh is a uniform Cartesian mesh over an index domain. The point backing
// multi-index i is Origin + (i + 1/2)*Spacing for cell centering and
// Origin + i*Spacing for vertex centering.
type Mesh struct {
	Domain    index.Box
	Spacing   []float64
	Origin    []float64
	Centering Centering
}

// New returns a cell-centered mesh over domain.
func New(domain index.Box, spacing, origin []float64) *Mesh {
	return &Mesh{
		Domain: domain.Clone(), Spacing: spacing, Origin: origin,
		Centering: Cell,
	}
}

// Dim returns the number of axes.
func (m *Mesh) Dim() int { return m.Domain.Dim() }

// CellVolume returns the volume of one cell.
func (m *Mesh) CellVolume() float64 {
	v := 1.0
	for _, h := range m.Spacing {
		v *= h
	}
	return v
}

// Extent returns the physical length of the domain along axis d.
func (m *Mesh) Extent(d int) float64 {
	return float64(m.Domain[d].Len()) * m.Spacing[d]
}

// Volume returns the physical volume of the whole domain.
func (m *Mesh) Volume() float64 {
	v := 1.0
	for d := range m.Spacing {
		v *= m.Extent(d)
	}
	return v
}

// Position writes the physical coordinates of multi-index idx into x,
// honoring the mesh centering.
func (m *Mesh) Position(idx []int, x []float64) {
	for d := range x {
		x[d] = m.Origin[d] + float64(idx[d])*m.Spacing[d]
		if m.Centering == Cell {
			x[d] += 0.5 * m.Spacing[d]
		}
	}
}

// CellOf writes into idx the multi-index of the cell containing the physical
// point x. Points on the far wall land in the last cell.
func (m *Mesh) CellOf(x []float64, idx []int) {
	for d := range idx {
		i := int(math.Floor((x[d] - m.Origin[d]) / m.Spacing[d]))
		if i < m.Domain[d].First {
			i = m.Domain[d].First
		}
		if i > m.Domain[d].Last {
			i = m.Domain[d].Last
		}
		idx[d] = i
	}
}
