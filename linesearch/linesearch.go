// Package linesearch implements the filter line-search that accepts or
// rejects an SQP step: a candidate is accepted either because it drives the
// constraint violation low enough that cost alone decides, or because it
// makes sufficient progress on the merit function or on the violation
// itself, whichever the current iterate needs most.
package linesearch

import (
	"fmt"

	"shooting-mpc-core/ocp"
)

// Config holds the filter's tunables, all with the same meaning as in the
// underlying multiple-shooting SQP driver.
type Config struct {
	MinStepLength float64 // alpha_min in (0,1]: smallest alpha tried before giving up
	StepReduction float64 // alpha_decay in (0,1): alpha *= alpha_decay on rejection
	GammaC        float64 // gamma_c in (0,1): shared merit/violation decrease fraction
	ViolationMin  float64 // g_min: violation below this makes merit decide alone
	ViolationMax  float64 // g_max: violation above this is an unconditional reject
}

// DefaultConfig mirrors typical multiple-shooting SQP defaults.
func DefaultConfig() Config {
	return Config{
		MinStepLength: 1e-4,
		StepReduction: 0.5,
		GammaC:        1e-4,
		ViolationMin:  1e-6,
		ViolationMax:  1e2,
	}
}

// Validate checks the range invariants 0<alpha_decay<1, 0<alpha_min<=1,
// 0<gamma_c<1, 0<g_min<g_max.
func (c Config) Validate() error {
	if c.StepReduction <= 0 || c.StepReduction >= 1 {
		return fmt.Errorf("linesearch: alpha_decay must be in (0,1), got %g", c.StepReduction)
	}
	if c.MinStepLength <= 0 || c.MinStepLength > 1 {
		return fmt.Errorf("linesearch: alpha_min must be in (0,1], got %g", c.MinStepLength)
	}
	if c.GammaC <= 0 || c.GammaC >= 1 {
		return fmt.Errorf("linesearch: gamma_c must be in (0,1), got %g", c.GammaC)
	}
	if c.ViolationMin <= 0 || c.ViolationMin >= c.ViolationMax {
		return fmt.Errorf("linesearch: g_min must be in (0,g_max), got g_min=%g g_max=%g", c.ViolationMin, c.ViolationMax)
	}
	return nil
}

// Regime names the acceptance rule a step was accepted (or rejected) under.
type Regime int

const (
	Rejected Regime = iota
	AcceptedLowViolation
	AcceptedMeritOrViolationDecrease
)

func (r Regime) String() string {
	switch r {
	case AcceptedLowViolation:
		return "low-violation"
	case AcceptedMeritOrViolationDecrease:
		return "merit-or-violation-decrease"
	default:
		return "rejected"
	}
}

// Candidate is what Evaluate produces for one trial step length.
type Candidate struct {
	Performance ocp.PerformanceIndex
	State       ocp.Trajectory
	Input       ocp.Trajectory
}

// Evaluate computes the performance of the trajectory obtained by applying
// stepLength of the QP step to the current iterate. An error signals the
// candidate is unusable (e.g. the dynamics blew up) and is treated as a
// rejection at that step length.
type Evaluate func(stepLength float64) (Candidate, error)

// Result is the outcome of a completed search.
type Result struct {
	StepLength  float64
	Regime      Regime
	Accepted    bool
	Iterations  int
	Performance ocp.PerformanceIndex
	State       ocp.Trajectory
	Input       ocp.Trajectory
}

// Search runs the backtracking filter line-search starting at step length 1,
// applying the acceptance table: reject unconditionally above g_max, accept
// below g_min iff merit improves, and otherwise accept iff merit decreases by
// at least gamma_c*v_B or violation decreases by at least a gamma_c fraction
// of v_B (the baseline violation). If every trial is rejected down to
// cfg.MinStepLength, Search returns the best (smallest-violation) rejected
// candidate with Accepted == false rather than an error, so the driver can
// still report a diagnosable non-convergent iteration.
func Search(cfg Config, baseline ocp.PerformanceIndex, eval Evaluate) (Result, error) {
	baseViolation := baseline.ConstraintViolation()
	alpha := 1.0
	iterations := 0

	var best Result
	haveBest := false

	for alpha >= cfg.MinStepLength {
		iterations++
		cand, err := eval(alpha)
		if err != nil {
			alpha *= cfg.StepReduction
			continue
		}

		violation := cand.Performance.ConstraintViolation()
		regime := Rejected

		switch {
		case violation > cfg.ViolationMax:
			// reject: violation too large regardless of merit
		case violation < cfg.ViolationMin:
			if cand.Performance.Merit < baseline.Merit {
				regime = AcceptedLowViolation
			}
		case cand.Performance.Merit < baseline.Merit-cfg.GammaC*baseViolation:
			regime = AcceptedMeritOrViolationDecrease
		case violation < (1-cfg.GammaC)*baseViolation:
			regime = AcceptedMeritOrViolationDecrease
		}

		result := Result{
			StepLength:  alpha,
			Regime:      regime,
			Accepted:    regime != Rejected,
			Iterations:  iterations,
			Performance: cand.Performance,
			State:       cand.State,
			Input:       cand.Input,
		}

		if result.Accepted {
			return result, nil
		}
		if !haveBest || violation < best.Performance.ConstraintViolation() {
			best = result
			haveBest = true
		}
		alpha *= cfg.StepReduction
	}

	if !haveBest {
		return Result{}, fmt.Errorf("linesearch: no candidate could be evaluated down to minimum step length %g", cfg.MinStepLength)
	}
	return best, nil
}
