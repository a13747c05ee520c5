package main

import (
	"encoding/json"
	"fmt"
	"os"

	"shooting-mpc-core/sqp"
)

// DemoScenario is the top-level JSON document the mpcdemo binary loads: the
// plant's initial state and reference, and the SQP solver's own config.
type DemoScenario struct {
	Meta struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"meta"`

	// Plant selects which collab.SystemDynamics the runner drives:
	// "double_integrator" (default) or "pendulum".
	Plant string `json:"plant"`

	InitialPosition float64 `json:"initial_position"`
	InitialVelocity float64 `json:"initial_velocity"`
	TargetPosition  float64 `json:"target_position"`

	HorizonS       float64 `json:"horizon_s"`
	ControlPeriodS float64 `json:"control_period_s"`
	SimDurationS   float64 `json:"sim_duration_s"`
	AccelMax       float64 `json:"accel_max"`
	PlotPath       string  `json:"plot_path"`

	Solver sqp.Config `json:"solver"`
}

// DefaultScenario mirrors a simple point-to-point maneuver.
func DefaultScenario() DemoScenario {
	s := DemoScenario{
		Plant:           "double_integrator",
		InitialPosition: 0,
		InitialVelocity: 0,
		TargetPosition:  10,
		HorizonS:        2.0,
		ControlPeriodS:  0.1,
		SimDurationS:    6.0,
		AccelMax:        3.0,
		PlotPath:        "mpcdemo_trajectory.png",
		Solver:          sqp.DefaultConfig(),
	}
	s.Meta.Name = "point-to-point"
	return s
}

// LoadScenario reads a DemoScenario from a JSON file, layering it over
// DefaultScenario and validating eagerly.
func LoadScenario(path string) (DemoScenario, error) {
	scen := DefaultScenario()

	data, err := os.ReadFile(path)
	if err != nil {
		return DemoScenario{}, fmt.Errorf("read scenario: %w", err)
	}
	if err := json.Unmarshal(data, &scen); err != nil {
		return DemoScenario{}, fmt.Errorf("unmarshal scenario: %w", err)
	}

	if scen.HorizonS <= 0 {
		return DemoScenario{}, fmt.Errorf("invalid horizon_s: %g", scen.HorizonS)
	}
	if scen.ControlPeriodS <= 0 || scen.ControlPeriodS > scen.HorizonS {
		return DemoScenario{}, fmt.Errorf("invalid control_period_s: %g", scen.ControlPeriodS)
	}
	if scen.AccelMax <= 0 {
		return DemoScenario{}, fmt.Errorf("invalid accel_max: %g", scen.AccelMax)
	}
	switch scen.Plant {
	case "double_integrator", "pendulum":
	default:
		return DemoScenario{}, fmt.Errorf("invalid plant: %q", scen.Plant)
	}
	if err := scen.Solver.Validate(); err != nil {
		return DemoScenario{}, err
	}
	return scen, nil
}
