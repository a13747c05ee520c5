// Package qp exposes the structured OCP-QP back-end contract the SQP engine
// treats as an external collaborator, plus a reference implementation
// (RiccatiSolver) built on a banded backward Riccati recursion. Designing a
// general, robust QP back-end is explicitly out of scope (spec Non-goals);
// RiccatiSolver covers the unconstrained-in-reduced-input case the
// projection path produces and the unconstrained equality-free case, and
// reports a fatal error for anything else.
package qp

import (
	"errors"

	"shooting-mpc-core/ocp"
)

// ErrQPSolveFailure wraps any back-end failure to solve the current QP. It
// is fatal for the SQP step that produced it.
var ErrQPSolveFailure = errors.New("qp: back-end failed to solve")

// Backend is the uniform contract every QP back-end must satisfy.
type Backend interface {
	// Resize allocates internal workspaces for the given problem shape. It
	// is idempotent: calling it again with the same size is a no-op.
	Resize(size ocp.OcpSize) error

	// Solve computes the primal step (deltaX, deltaU) of the QP defined by
	// the banded dynamics and cost blocks, starting from the initial
	// condition deviation deltaX0. ineq is nil when the problem carries no
	// inequality constraints (in particular: whenever projection is
	// enabled, since the projected problem is unconstrained in the reduced
	// input by construction).
	Solve(deltaX0 ocp.Vector, dynamics []ocp.DynamicsBlock, cost []ocp.CostBlock, ineq []ocp.InequalityBlock) (deltaX, deltaU []ocp.Vector, err error)

	// RiccatiFeedback returns the state-feedback gain sequence K_i from the
	// backward Riccati recursion of the same QP passed to Solve.
	RiccatiFeedback(dynamics []ocp.DynamicsBlock, cost []ocp.CostBlock) ([]ocp.Matrix, error)
}
