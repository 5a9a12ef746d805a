/*package picell is a distributed particle-in-cell framework for collective
electrostatic plasma dynamics on structured Cartesian grids.

A simulation couples a particle ensemble to a self-consistent electric field
obtained by solving Poisson's equation spectrally on a distributed mesh. The
pieces, bottom up:

	index     closed index ranges and N-dimensional boxes
	mesh      uniform Cartesian meshes
	comm      the rank communicator and its collectives
	exec      the parallel-for executor elementwise kernels run under
	layout    rank ownership of the global domain, ghosts, boundary policy
	field     distributed arrays: algebra, stencils, halo exchange
	particle  structure-of-arrays particle containers and redistribution
	fft       distributed CC/RC/sine/cosine transforms
	solver    periodic, open-boundary, and P3M Poisson solvers
	balancer  orthogonal recursive bisection over a weight field
	pic       cloud-in-cell coupling and the leapfrog driver
	params    typed per-subsystem parameter bags
	config    gcfg configuration file front end
	errs      structured error taxonomy

The per-step data flow is scatter -> halo flush -> solve -> halo fill ->
gather -> leapfrog update -> redistribution, with opportunistic
repartitioning when the particle load drifts out of balance.
*/
package picell
