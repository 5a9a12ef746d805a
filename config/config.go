/*package config reads simulation configuration files and binds their
sections to the typed parameter bags the subsystems consume.*/
package config

import (
	"fmt"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/picell/params"
)

const ExampleConfigFile = `[Simulation]

#######################
# Required Parameters #
#######################

# Number of grid cells per axis.
Grid = 32

# Physical width of the (cubic) domain.
BoxWidth = 12.566370614359172

# Time step and step count.
TimeStep = 0.05
Steps = 20

# Total number of macro-particles across all ranks.
Particles = 1000000

[FFT]

# When true, every other key in this section except Backend is ignored and
# the transform defaults are used.
# UseHeffteDefaults = false

# UsePencils = true
# UseReorder = false
# UseGPUAware = false

# Axis whose length is halved by the real-to-complex transform. 0 <= axis < 3.
# R2CDirection = 0

# Inter-rank reshape pattern. One of all_to_all, all_to_all_v, p2p,
# p2p_pipelined.
# Comm = all_to_all_v

# Transform backend: gonum or godsp.
# Backend = gonum

[Solver]

# What the solver writes: SOL, GRAD, or SOL_AND_GRAD.
OutputType = GRAD

# PERIODIC, HOCKNEY, VICO, or P3M.
Algorithm = PERIODIC

# Epsilon0 = 1.0

# P3M only: short-range cutoff radius and screening length.
# RCutoff = 0.0
# Alpha = 0.0

[LoadBalancer]

# Rebalance when the max/mean rank load exceeds this. 1.0 disables.
Threshold = 1.0

# Bitmask of axes eligible for splitting; 0 means every parallel axis.
# AxesEligible = 0
`

type SimulationConfig struct {
	Grid      int
	BoxWidth  float64
	TimeStep  float64
	Steps     int
	Particles int
}

type FFTConfig struct {
	UseHeffteDefaults bool
	UsePencils        bool
	UseReorder        bool
	UseGPUAware       bool
	R2CDirection      int
	Comm              string
	Backend           string
}

type SolverConfig struct {
	OutputType string
	Algorithm  string
	Tolerance  float64
	Epsilon0   float64
	RCutoff    float64
	Alpha      float64
}

type LoadBalancerConfig struct {
	Threshold    float64
	AxesEligible int
}

// File is the full parsed configuration file.
type File struct {
	Simulation   SimulationConfig
	FFT          FFTConfig
	Solver       SolverConfig
	LoadBalancer LoadBalancerConfig
}

// Read parses and validates a configuration file.
func Read(path string) (*File, error) {
	f := &File{}
	f.FFT.UsePencils = true
	f.FFT.Comm = "all_to_all_v"
	f.FFT.Backend = "gonum"
	f.Solver.OutputType = "GRAD"
	f.Solver.Algorithm = "PERIODIC"
	f.Solver.Epsilon0 = 1.0
	f.LoadBalancer.Threshold = 1.0

	if err := gcfg.ReadFileInto(f, path); err != nil {
		return nil, err
	}
	if err := f.CheckInit(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadString parses a configuration held in a string; used by tests and
// embedding callers.
func ReadString(text string) (*File, error) {
	f := &File{}
	f.FFT.UsePencils = true
	f.FFT.Comm = "all_to_all_v"
	f.FFT.Backend = "gonum"
	f.Solver.OutputType = "GRAD"
	f.Solver.Algorithm = "PERIODIC"
	f.Solver.Epsilon0 = 1.0
	f.LoadBalancer.Threshold = 1.0

	if err := gcfg.ReadStringInto(f, text); err != nil {
		return nil, err
	}
	if err := f.CheckInit(); err != nil {
		return nil, err
	}
	return f, nil
}

// CheckInit validates the parsed file.
func (f *File) CheckInit() error {
	s := &f.Simulation
	if s.Grid <= 0 {
		return fmt.Errorf("Need to specify a positive Grid, but got %d.",
			s.Grid)
	}
	if s.BoxWidth <= 0 {
		return fmt.Errorf(
			"Need to specify a positive BoxWidth, but got %g.", s.BoxWidth)
	}
	if s.TimeStep <= 0 {
		return fmt.Errorf(
			"Need to specify a positive TimeStep, but got %g.", s.TimeStep)
	}

	switch strings.ToUpper(f.Solver.Algorithm) {
	case "PERIODIC", "HOCKNEY", "VICO", "P3M":
	default:
		return fmt.Errorf("Unknown solver Algorithm '%s'.",
			f.Solver.Algorithm)
	}
	switch strings.ToUpper(f.Solver.OutputType) {
	case "SOL", "GRAD", "SOL_AND_GRAD":
	default:
		return fmt.Errorf("Unknown solver OutputType '%s'.",
			f.Solver.OutputType)
	}

	if f.LoadBalancer.Threshold < 1 {
		return fmt.Errorf(
			"LoadBalancer Threshold must be at least 1.0, but is %g.",
			f.LoadBalancer.Threshold)
	}
	return nil
}

// FFTParams binds the [FFT] section into a parameter list.
func (f *File) FFTParams() *params.List {
	p := params.New()
	p.Add("use_heffte_defaults", f.FFT.UseHeffteDefaults)
	p.Add("use_pencils", f.FFT.UsePencils)
	p.Add("use_reorder", f.FFT.UseReorder)
	p.Add("use_gpu_aware", f.FFT.UseGPUAware)
	p.Add("r2c_direction", f.FFT.R2CDirection)
	p.Add("comm", f.FFT.Comm)
	p.Add("backend", f.FFT.Backend)
	return p
}

// SolverParams binds the [Solver] section, together with the FFT keys the
// solver forwards to its transform plans.
func (f *File) SolverParams() *params.List {
	p := f.FFTParams()
	p.Add("output_type", strings.ToUpper(f.Solver.OutputType))
	p.Add("algorithm", strings.ToUpper(f.Solver.Algorithm))
	p.Add("epsilon0", f.Solver.Epsilon0)
	if f.Solver.Tolerance > 0 {
		p.Add("tolerance", f.Solver.Tolerance)
	}
	if f.Solver.RCutoff > 0 {
		p.Add("r_cutoff", f.Solver.RCutoff)
	}
	if f.Solver.Alpha > 0 {
		p.Add("alpha", f.Solver.Alpha)
	}
	return p
}

// BalancerParams binds the [LoadBalancer] section.
func (f *File) BalancerParams() *params.List {
	p := params.New()
	p.Add("threshold", f.LoadBalancer.Threshold)
	p.Add("axes_eligible", f.LoadBalancer.AxesEligible)
	return p
}
