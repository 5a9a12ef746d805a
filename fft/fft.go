/*package fft provides distributed complex-to-complex, real-to-complex,
sine, and cosine transforms over a field layout. A Plan is built per layout
and transform kind, holds the backend planners and a reusable staging
buffer, and must be rebuilt when either changes.

Transforms redistribute data so that each 1D line along the transform axis
is complete on one rank, run the backend down every line, and route the
results back. The inter-rank exchange pattern is configurable.*/
package fft

import (
	"github.com/phil-mansfield/picell/errs"
	"github.com/phil-mansfield/picell/params"
)

// Kind selects the transform type.
type Kind int

const (
	CC Kind = iota
	RC
	Sin
	Cos
)

func (k Kind) String() string {
	return []string{"CC", "RC", "Sin", "Cos"}[k]
}

// Direction selects forward (+1) or backward (-1) transformation. The
// forward transform scales by 1/N; the backward applies no scaling.
type Direction int

const (
	Forward  Direction = +1
	Backward Direction = -1
)

// CommTag selects the inter-rank exchange pattern used during reshapes.
type CommTag int

const (
	CommAllToAll CommTag = iota
	CommAllToAllV
	CommP2P
	CommP2PPipelined
)

// Config holds the parsed transform options.
type Config struct {
	Pencils  bool
	Reorder  bool
	GPUAware bool
	R2CAxis  int
	Comm     CommTag
	Backend  Backend
}

// parseParams extracts the FFT configuration from a parameter list. With
// use_heffte_defaults set, every other key except backend is ignored.
func parseParams(p *params.List, dim int) (Config, error) {
	cfg := Config{
		Pencils: true, Reorder: false, GPUAware: false,
		R2CAxis: 0, Comm: CommAllToAllV,
	}

	name, err := params.GetOr(p, "backend", "gonum")
	if err != nil {
		return cfg, err
	}
	switch name {
	case "gonum":
		cfg.Backend = NewGonumBackend()
	case "godsp":
		cfg.Backend = NewGoDSPBackend()
	default:
		return cfg, errs.New("fft", "parseParams", errs.Configuration,
			"unknown backend '%s'", name)
	}

	useDefaults, err := params.GetOr(p, "use_heffte_defaults", false)
	if err != nil {
		return cfg, err
	}
	if useDefaults {
		return cfg, nil
	}

	if cfg.Pencils, err = params.GetOr(p, "use_pencils", true); err != nil {
		return cfg, err
	}
	if cfg.Reorder, err = params.GetOr(p, "use_reorder", false); err != nil {
		return cfg, err
	}
	if cfg.GPUAware, err = params.GetOr(p, "use_gpu_aware", false); err != nil {
		return cfg, err
	}

	if cfg.R2CAxis, err = params.GetOr(p, "r2c_direction", 0); err != nil {
		return cfg, err
	}
	if cfg.R2CAxis < 0 || cfg.R2CAxis >= dim {
		return cfg, errs.New("fft", "parseParams", errs.Configuration,
			"r2c_direction %d outside a %d-dimensional domain",
			cfg.R2CAxis, dim)
	}

	commName, err := params.GetOr(p, "comm", "all_to_all_v")
	if err != nil {
		return cfg, err
	}
	switch commName {
	case "all_to_all":
		cfg.Comm = CommAllToAll
	case "all_to_all_v":
		cfg.Comm = CommAllToAllV
	case "p2p":
		cfg.Comm = CommP2P
	case "p2p_pipelined":
		cfg.Comm = CommP2PPipelined
	default:
		return cfg, errs.New("fft", "parseParams", errs.Configuration,
			"unknown reshape communication '%s'", commName)
	}

	return cfg, nil
}

// checkDirection rejects directions outside {+1, -1}.
func checkDirection(dir Direction) error {
	if dir != Forward && dir != Backward {
		return errs.New("fft", "Transform", errs.Configuration,
			"unknown transform direction %d", int(dir))
	}
	return nil
}
