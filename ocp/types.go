// Package ocp defines the data model shared by every stage of the multiple
// shooting SQP pipeline: trajectories, the per-node linearization blocks, the
// structured QP size descriptor, the performance index, and the primal
// solution returned to the caller.
package ocp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vector is a dense column vector.
type Vector = *mat.VecDense

// Matrix is a dense matrix.
type Matrix = *mat.Dense

// Trajectory is an ordered sequence of vectors aligned with a TimeGrid.
type Trajectory []Vector

// Clone returns a deep copy of the trajectory.
func (t Trajectory) Clone() Trajectory {
	out := make(Trajectory, len(t))
	for i, v := range t {
		if v == nil {
			continue
		}
		out[i] = mat.VecDenseCopyOf(v)
	}
	return out
}

// TimeGrid is an ordered sequence of time samples, strictly increasing except
// at duplicated event boundaries (see the timegrid builder).
type TimeGrid []float64

// DynamicsBlock is the discretized affine model of one shooting interval:
// x_{i+1} ~= A*x_i + B*u_i + Bias.
type DynamicsBlock struct {
	A    Matrix
	B    Matrix
	Bias Vector
}

// CostBlock is the local quadratic approximation of the cost at one node:
// 1/2 [x;u]^T H [x;u] + g^T [x;u] + C. Huu and Gu are nil at the terminal
// node, where the input block is absent.
type CostBlock struct {
	Hxx Matrix
	Hux Matrix
	Huu Matrix
	Gx  Vector
	Gu  Vector
	C   float64
}

// IsTerminal reports whether this cost block has no input component.
func (c CostBlock) IsTerminal() bool { return c.Huu == nil }

// ConstraintBlock is the per-node state-input equality representation.
//
// When Projected is true, it encodes the affine reconstruction
// u = F + Dfdx*x + Dfdu*uTilde that maps the reduced free input uTilde back
// to the real input u, and the downstream QP is expressed in uTilde.
//
// When Projected is false, {F, Dfdx, Dfdu} is instead a raw linear equality
// block Dfdx*x + Dfdu*u + F = 0 passed through to the QP backend unmodified.
type ConstraintBlock struct {
	Projected bool
	F         Vector
	Dfdx      Matrix
	Dfdu      Matrix
}

// InequalityBlock is a raw linear inequality g(x,u) = Dgdx*x + Dgdu*u + G >= 0.
// Dgdu is nil at the terminal node.
type InequalityBlock struct {
	G    Vector
	Dgdx Matrix
	Dgdu Matrix
}

// OcpSize describes the shape of a structured OCP-QP: the horizon length and
// the per-node state/input/constraint counts. NumInputs and NumIneq/NumEq
// have length N (inputs) or N+1 (state-indexed quantities); see NewOcpSize.
type OcpSize struct {
	N                  int
	NumStates          []int
	NumInputs          []int
	NumIneqConstraints []int
	NumEqConstraints   []int
}

// NewOcpSize builds a size descriptor with constant per-node state and input
// dimension and zeroed constraint counts, ready to be refined by node
// transcription.
func NewOcpSize(n, nState, nInput int) OcpSize {
	states := make([]int, n+1)
	inputs := make([]int, n)
	ineq := make([]int, n+1)
	eq := make([]int, n+1)
	for i := range states {
		states[i] = nState
	}
	for i := range inputs {
		inputs[i] = nInput
	}
	return OcpSize{N: n, NumStates: states, NumInputs: inputs, NumIneqConstraints: ineq, NumEqConstraints: eq}
}

// PerformanceIndex aggregates cost and constraint-violation quantities for a
// candidate trajectory. All fields except Merit are non-negative.
type PerformanceIndex struct {
	TotalCost                   float64
	StateEqConstraintISE        float64
	StateInputEqConstraintISE   float64
	InequalityConstraintISE     float64
	InequalityConstraintPenalty float64
	Merit                       float64
}

// Add returns the field-wise sum of p and other. Merit is left to be
// recomputed by the caller once totalCost and the penalty are final, since
// summing per-node merits is not the same as the merit of the sum.
func (p PerformanceIndex) Add(other PerformanceIndex) PerformanceIndex {
	return PerformanceIndex{
		TotalCost:                   p.TotalCost + other.TotalCost,
		StateEqConstraintISE:        p.StateEqConstraintISE + other.StateEqConstraintISE,
		StateInputEqConstraintISE:   p.StateInputEqConstraintISE + other.StateInputEqConstraintISE,
		InequalityConstraintISE:     p.InequalityConstraintISE + other.InequalityConstraintISE,
		InequalityConstraintPenalty: p.InequalityConstraintPenalty + other.InequalityConstraintPenalty,
	}
}

// ConstraintViolation returns the Euclidean norm of the equality and
// inequality violation terms, as used by the filter line-search.
func (p PerformanceIndex) ConstraintViolation() float64 {
	sum := p.StateEqConstraintISE + p.StateInputEqConstraintISE + p.InequalityConstraintISE
	if sum <= 0 {
		return 0
	}
	return math.Sqrt(sum)
}

// ModeSchedule lists the horizon instants at which the dynamics mode changes,
// paired with the mode active after each event.
type ModeSchedule struct {
	EventTimes   []float64
	ModeSequence []int
}

// DesiredTrajectories are the reference signals a CostFunction is evaluated
// against. Nil means "no reference", i.e. regulate to the origin.
type DesiredTrajectories struct {
	Time  []float64
	State Trajectory
	Input Trajectory
}

// PrimalSolution is the outcome of a solve: the time grid, state and input
// trajectories (Input padded to length N+1 by duplicating the last input),
// the mode schedule that was active, and the emitted controller.
type PrimalSolution struct {
	TimeGrid     TimeGrid
	State        Trajectory
	Input        Trajectory
	ModeSchedule ModeSchedule
	Controller   Controller
}
