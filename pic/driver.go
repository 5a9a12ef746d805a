package pic

/* driver.go sequences one leapfrog step: kick, drift, redistribute,
optionally rebalance, scatter, solve, gather, kick. The ensemble carries a
constant charge-to-mass ratio of -1, so mass is never stored. */

import (
	"log"

	"github.com/phil-mansfield/picell/balancer"
	"github.com/phil-mansfield/picell/field"
	"github.com/phil-mansfield/picell/layout"
	"github.com/phil-mansfield/picell/mesh"
	"github.com/phil-mansfield/picell/particle"
)

// FieldSolver is the slice of the solver family the driver needs.
type FieldSolver interface {
	Initialize(l *layout.Layout, m *mesh.Mesh) error
	Solve(rho *field.Field[float64], phi *field.Field[float64],
		E []*field.Field[float64]) error
	// OpenBoundary reports whether the solver is free-space. The
	// neutralizing background is subtracted exactly when it is not.
	OpenBoundary() bool
}

// Driver owns the particle container, the mesh fields, and the solver, and
// advances the ensemble with kick-drift-kick leapfrog.
type Driver struct {
	PC *particle.Container
	Q  *particle.Float64 // charge
	P  *particle.Vec     // momentum
	EP *particle.Vec     // field gathered at the particle

	Rho *field.Field[float64]
	E   []*field.Field[float64]

	Solver   FieldSolver
	Balancer *balancer.ORB

	M      *mesh.Mesh
	QTotal float64 // fixed total charge, for the background subtraction

	Time float64
	Step int

	l *layout.Layout
}

// NewDriver assembles a driver over a layout and mesh. The solver must
// already be initialized on the same layout.
func NewDriver(
	l *layout.Layout, m *mesh.Mesh, s FieldSolver, lb *balancer.ORB,
) *Driver {
	dim := l.Dim()
	pc := particle.NewContainer(l, m)
	d := &Driver{
		PC: pc,
		Q:  particle.NewFloat64("q"),
		P:  particle.NewVec("P", dim),
		EP: particle.NewVec("E", dim),

		Rho: field.New[float64](l),
		E:   field.NewVec[float64](l, dim),

		Solver: s, Balancer: lb,
		M: m, l: l,
	}
	pc.Add(d.Q)
	pc.Add(d.P)
	pc.Add(d.EP)
	return d
}

// Layout returns the driver's current layout.
func (d *Driver) Layout() *layout.Layout { return d.l }

// Advance runs one leapfrog step of length dt. Collective.
func (d *Driver) Advance(dt float64) error {
	dim := d.l.Dim()
	n := d.PC.LocalNum()

	// Half kick, then drift.
	for i := 0; i < n; i++ {
		for c := 0; c < dim; c++ {
			d.P.Data[i*dim+c] -= 0.5 * dt * d.EP.Data[i*dim+c]
		}
	}
	for i := 0; i < n; i++ {
		for c := 0; c < dim; c++ {
			d.R().Data[i*dim+c] += dt * d.P.Data[i*dim+c]
		}
	}

	// Movers change hands.
	if err := d.PC.Update(); err != nil {
		return err
	}

	if d.Balancer != nil &&
		d.Balancer.ShouldRebalance(float64(d.PC.LocalNum())) {
		if err := d.rebalance(); err != nil {
			return err
		}
	}

	if err := d.ScatterRho(); err != nil {
		return err
	}
	if err := d.Solver.Solve(d.Rho, nil, d.E); err != nil {
		return err
	}

	for c := range d.E {
		if err := d.E[c].FillHalo(); err != nil {
			return err
		}
	}
	if err := Gather(d.EP, d.E, d.PC.R, d.M); err != nil {
		return err
	}

	// Closing half kick.
	n = d.PC.LocalNum()
	for i := 0; i < n; i++ {
		for c := 0; c < dim; c++ {
			d.P.Data[i*dim+c] -= 0.5 * dt * d.EP.Data[i*dim+c]
		}
	}

	d.Time += dt
	d.Step++
	return nil
}

// R returns the position attribute.
func (d *Driver) R() *particle.Vec { return d.PC.R }

// Prime runs the initial field solve and gather so the first step's opening
// kick sees a consistent field, mirroring the usual pre-run sequence.
func (d *Driver) Prime() error {
	if err := d.ScatterRho(); err != nil {
		return err
	}
	if err := d.Solver.Solve(d.Rho, nil, d.E); err != nil {
		return err
	}
	for c := range d.E {
		if err := d.E[c].FillHalo(); err != nil {
			return err
		}
	}
	return Gather(d.EP, d.E, d.PC.R, d.M)
}

// ScatterRho rebuilds the charge density: clear, CIC scatter, divide by the
// cell volume, and subtract the neutralizing background unless the solver
// has open boundaries.
func (d *Driver) ScatterRho() error {
	d.Rho.Fill(0)
	if err := Scatter(d.Q, d.Rho, d.PC.R, d.M); err != nil {
		return err
	}

	vol := d.M.CellVolume()
	err := d.Rho.Assign(field.Scale(1/vol, field.Ref(d.Rho)))
	if err != nil {
		return err
	}

	if !d.Solver.OpenBoundary() {
		background := d.QTotal / d.M.Volume()
		err := d.Rho.Assign(field.Sub(
			field.Ref(d.Rho), field.Con(background),
		))
		if err != nil {
			return err
		}
	}
	return nil
}

// rebalance repartitions on the current density, migrates the fields and
// particles, and replans the solver on the new layout.
func (d *Driver) rebalance() error {
	fields := append([]*field.Field[float64]{d.Rho}, d.E...)
	nl, err := d.Balancer.Repartition(d.Rho, d.l, fields, d.PC)
	if err != nil {
		return err
	}
	d.l = nl
	if err := d.Solver.Initialize(nl, d.M); err != nil {
		return err
	}
	log.Printf("pic: repartitioned onto %d ranks at step %d",
		nl.Comm().Size(), d.Step)
	return nil
}

// FieldProbe returns the x-component field energy integral and max norm,
// the quantities a Landau damping run tracks. Collective.
func (d *Driver) FieldProbe() (energy, maxNorm float64) {
	e2, _ := field.InnerProduct(d.E[0], d.E[0])
	return e2 * d.M.CellVolume(), field.Norm(d.E[0], 0)
}

// DepositedCharge integrates rho over the domain before background
// subtraction would apply: scatter fresh and sum. Used by conservation
// checks.
func (d *Driver) DepositedCharge() (float64, error) {
	d.Rho.Fill(0)
	if err := Scatter(d.Q, d.Rho, d.PC.R, d.M); err != nil {
		return 0, err
	}
	return field.Sum(d.Rho), nil
}
