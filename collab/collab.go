// Package collab defines the external collaborator interfaces the SQP
// engine is built around: continuous-time dynamics, cost, optional
// constraints, and an optional warm-start heuristic. All of them are cloned
// once per worker at solver construction so that concurrent node
// transcription never shares mutable evaluator state.
package collab

import "shooting-mpc-core/ocp"

// SystemDynamics is the continuous-time vector field dx/dt = f(t, x, u) and
// its jacobians.
type SystemDynamics interface {
	// Clone returns an independent copy for exclusive use by one worker.
	Clone() SystemDynamics
	// Flow evaluates f(t, x, u).
	Flow(t float64, x, u ocp.Vector) ocp.Vector
	// Jacobians evaluates df/dx and df/du at (t, x, u).
	Jacobians(t float64, x, u ocp.Vector) (dfdx, dfdu ocp.Matrix)
}

// CostFunction is the stage and terminal cost and their quadratic
// approximations against a desired trajectory. StageCost and its quadratic
// approximation are both cost *rates*: the node transcriber integrates them
// over an interval by scaling by dt, so implementations should not do that
// themselves.
type CostFunction interface {
	Clone() CostFunction

	StageCost(t float64, x, u ocp.Vector, desired *ocp.DesiredTrajectories) float64
	StageCostQuadraticApproximation(t float64, x, u ocp.Vector, desired *ocp.DesiredTrajectories) ocp.CostBlock

	TerminalCost(t float64, x ocp.Vector, desired *ocp.DesiredTrajectories) float64
	TerminalCostQuadraticApproximation(t float64, x ocp.Vector, desired *ocp.DesiredTrajectories) ocp.CostBlock
}

// Constraint provides state-input equality and inequality values and
// jacobians. A nil return for f/g means "no constraint at this node".
type Constraint interface {
	Clone() Constraint

	// StateInputEquality returns f, dfdx, dfdu of dfdx*x + dfdu*u + f = 0.
	StateInputEquality(t float64, x, u ocp.Vector) (f ocp.Vector, dfdx, dfdu ocp.Matrix)
	// Inequality returns g, dgdx, dgdu of dgdx*x + dgdu*u + g >= 0.
	Inequality(t float64, x, u ocp.Vector) (g ocp.Vector, dgdx, dgdu ocp.Matrix)
	// TerminalInequality returns g, dgdx of dgdx*x + g >= 0 at the horizon end.
	TerminalInequality(t float64, x ocp.Vector) (g ocp.Vector, dgdx ocp.Matrix)
}

// OperatingTrajectories is a heuristic (x, u) source used to warm-start
// intervals the previous solution does not cover.
type OperatingTrajectories interface {
	Clone() OperatingTrajectories
	// Sample returns a heuristic input for the interval [t0, t1] starting
	// from state x.
	Sample(x ocp.Vector, t0, t1 float64) ocp.Vector
}
