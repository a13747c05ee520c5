package sqp

import (
	"encoding/json"
	"fmt"
	"os"

	"shooting-mpc-core/integrate"
	"shooting-mpc-core/linesearch"
)

// Config holds every knob of the multiple-shooting SQP driver. It is
// eagerly validated by LoadConfig and by NewSolver so a misconfigured solver
// never gets constructed.
type Config struct {
	// Horizon and grid.
	TimeStep          float64 `json:"dt_s"`
	EventSnapEpsilon  float64 `json:"event_snap_epsilon_s"`

	// Iteration limits and convergence.
	MaxIterations       int     `json:"max_iterations"`
	DeltaTolerance      float64 `json:"delta_tolerance"`
	ConstraintTolerance float64 `json:"constraint_tolerance"`
	CostTolerance       float64 `json:"cost_tolerance"`

	// Discretization and projection.
	Integrator     string `json:"integrator"`
	UseFeedbackPolicy bool `json:"use_feedback_policy"`
	ProjectStateInputEqualityConstraints bool `json:"project_equality_constraints"`

	// Relaxed barrier penalty for inequalities (both must be > 0 to activate).
	PenaltyMu    float64 `json:"penalty_mu"`
	PenaltyDelta float64 `json:"penalty_delta"`

	// Filter line-search.
	LineSearch linesearch.Config `json:"line_search"`

	// Concurrency.
	NumThreads int `json:"num_threads"`

	// Diagnostics.
	PrintSolverStatus     bool `json:"print_solver_status"`
	PrintLineSearch       bool `json:"print_linesearch"`
	PrintSolverStatistics bool `json:"print_solver_statistics"`
}

// DefaultConfig returns a Config with reasonable defaults for a first
// solve, matching typical multiple-shooting SQP settings.
func DefaultConfig() Config {
	return Config{
		TimeStep:                             0.01,
		EventSnapEpsilon:                      1e-3,
		MaxIterations:                         10,
		DeltaTolerance:                        1e-3,
		ConstraintTolerance:                   1e-6,
		CostTolerance:                         1e-4,
		Integrator:                            "rk2",
		UseFeedbackPolicy:                     true,
		ProjectStateInputEqualityConstraints:  true,
		PenaltyMu:                             1.0,
		PenaltyDelta:                          0.1,
		LineSearch:                            linesearch.DefaultConfig(),
		NumThreads:                            4,
	}
}

// LoadConfig reads a Config from a JSON file, filling unset fields from
// DefaultConfig and eagerly validating the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("sqp: read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("sqp: unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every field is within a usable range.
func (c Config) Validate() error {
	if c.TimeStep <= 0 {
		return fmt.Errorf("sqp: invalid dt_s: %g", c.TimeStep)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("sqp: invalid max_iterations: %d", c.MaxIterations)
	}
	if c.DeltaTolerance <= 0 {
		return fmt.Errorf("sqp: invalid delta_tolerance: %g", c.DeltaTolerance)
	}
	if _, err := integratorType(c.Integrator); err != nil {
		return err
	}
	if (c.PenaltyMu > 0) != (c.PenaltyDelta > 0) {
		return fmt.Errorf("sqp: penalty_mu and penalty_delta must both be zero or both positive")
	}
	if c.NumThreads < 1 {
		return fmt.Errorf("sqp: invalid num_threads: %d", c.NumThreads)
	}
	if err := c.LineSearch.Validate(); err != nil {
		return err
	}
	return nil
}

func integratorType(name string) (integrate.Type, error) {
	switch name {
	case "", "euler":
		return integrate.Euler, nil
	case "rk2":
		return integrate.RK2, nil
	case "rk4":
		return integrate.RK4, nil
	default:
		return 0, fmt.Errorf("sqp: unknown integrator %q", name)
	}
}
