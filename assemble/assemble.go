// Package assemble builds one structured OCP-QP subproblem from a candidate
// trajectory by fanning per-node transcription out across a worker pool and
// aggregating the resulting performance index in worker-id order, so the
// total is bit-reproducible independent of how nodes were scheduled.
package assemble

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/integrate"
	"shooting-mpc-core/ocp"
	"shooting-mpc-core/transcribe"
	"shooting-mpc-core/workerpool"
)

// ErrShapeMismatch is returned when the candidate trajectory does not match
// the time grid the assembler was configured for.
var ErrShapeMismatch = errors.New("assemble: trajectory does not match time grid")

// Options controls how every node in the horizon is transcribed.
type Options struct {
	NumThreads int
	Integrator integrate.Type
	Project    bool
	PenaltyMu  float64
	PenaltyDelta float64
}

// Assembler owns one cloned collaborator set per worker and reuses them
// across every Assemble call for the lifetime of a solve.
type Assembler struct {
	opt     Options
	workers []workerSet
}

type workerSet struct {
	dyn        collab.SystemDynamics
	cost       collab.CostFunction
	constraint collab.Constraint
}

// New clones dyn, cost and constraint once per worker. constraint may be
// nil if the problem has no path or terminal constraints.
func New(opt Options, dyn collab.SystemDynamics, cost collab.CostFunction, constraint collab.Constraint) *Assembler {
	n := workerpool.NumWorkers(opt.NumThreads)
	workers := make([]workerSet, n)
	for i := range workers {
		ws := workerSet{dyn: dyn.Clone(), cost: cost.Clone()}
		if constraint != nil {
			ws.constraint = constraint.Clone()
		}
		workers[i] = ws
	}
	return &Assembler{opt: opt, workers: workers}
}

// Result is one fully transcribed subproblem, indexed like the time grid:
// Dynamics and per-node Constraint have length N; Cost and Inequality have
// length N+1, since the terminal node can carry its own inequality block.
type Result struct {
	Size        ocp.OcpSize
	Dynamics    []ocp.DynamicsBlock
	Cost        []ocp.CostBlock
	Constraints []ocp.ConstraintBlock
	Inequality  []ocp.InequalityBlock
	Performance ocp.PerformanceIndex
}

// Assemble transcribes every node of the horizon defined by grid against
// the candidate trajectory (x has length N+1, u has length N). initState is
// the true initial condition the trajectory is shot from; any gap between it
// and x[0] is added to the aggregate StateEqConstraintISE as the shooting
// defect on interval 0, matching the per-worker interval residuals.
func (a *Assembler) Assemble(grid ocp.TimeGrid, x, u ocp.Trajectory, initState ocp.Vector, desired *ocp.DesiredTrajectories) (Result, error) {
	n := len(grid) - 1
	if n < 0 || len(x) != n+1 || len(u) != n {
		return Result{}, fmt.Errorf("%w: grid has %d nodes, x has %d, u has %d", ErrShapeMismatch, n+1, len(x), len(u))
	}

	dynamics := make([]ocp.DynamicsBlock, n)
	cost := make([]ocp.CostBlock, n+1)
	constraints := make([]ocp.ConstraintBlock, n)
	inequality := make([]ocp.InequalityBlock, n+1)
	perWorker := make([]ocp.PerformanceIndex, len(a.workers))

	penalty := transcribe.NewPenalty(a.opt.PenaltyMu, a.opt.PenaltyDelta)
	nodeOpt := transcribe.Options{Integrator: a.opt.Integrator, Project: a.opt.Project, Penalty: penalty}

	task := func(workerID, i int) error {
		ws := a.workers[workerID]
		if i == n {
			res := transcribe.TerminalNode(ws.cost, ws.constraint, penalty, desired, grid[n], x[n])
			cost[n] = res.Cost
			inequality[n] = res.Inequality
			perWorker[workerID] = perWorker[workerID].Add(res.Performance)
			return nil
		}

		dt := grid[i+1] - grid[i]
		res, err := transcribe.IntermediateNode(ws.dyn, ws.cost, ws.constraint, desired, nodeOpt, grid[i], dt, x[i], x[i+1], u[i])
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		dynamics[i] = res.Dynamics
		cost[i] = res.Cost
		constraints[i] = res.Constraint
		inequality[i] = res.Inequality
		perWorker[workerID] = perWorker[workerID].Add(res.Performance)
		return nil
	}

	if err := workerpool.Dispatch(a.opt.NumThreads, n, task); err != nil {
		return Result{}, err
	}

	var total ocp.PerformanceIndex
	for _, p := range perWorker {
		total = total.Add(p)
	}
	initResidual := mat.NewVecDense(initState.Len(), nil)
	initResidual.SubVec(initState, x[0])
	total.StateEqConstraintISE += mat.Dot(initResidual, initResidual)
	total.Merit = total.TotalCost + total.InequalityConstraintPenalty

	size := ocp.NewOcpSize(n, x[0].Len(), u[0].Len())
	for i, c := range constraints {
		if c.F == nil {
			continue
		}
		if c.Projected {
			_, size.NumInputs[i] = dynamics[i].B.Dims()
		} else {
			size.NumEqConstraints[i] = c.F.Len()
		}
	}
	for i, ib := range inequality {
		if ib.G != nil {
			size.NumIneqConstraints[i] = ib.G.Len()
		}
	}

	return Result{
		Size:        size,
		Dynamics:    dynamics,
		Cost:        cost,
		Constraints: constraints,
		Inequality:  inequality,
		Performance: total,
	}, nil
}
