// Package perf re-evaluates the cost and constraint-violation integrals of a
// candidate trajectory without computing any derivatives, for use by the
// filter line-search and by the solver's convergence check. It fans the
// per-node work out across the same worker-pool pattern as node
// transcription, and reduces in worker-id order for reproducibility.
package perf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/integrate"
	"shooting-mpc-core/ocp"
	"shooting-mpc-core/transcribe"
	"shooting-mpc-core/workerpool"
)

// Options controls trajectory evaluation.
type Options struct {
	NumThreads   int
	Integrator   integrate.Type
	PenaltyMu    float64
	PenaltyDelta float64
}

// Evaluator owns one cloned collaborator set per worker, reused across every
// Evaluate call for the lifetime of a solve.
type Evaluator struct {
	opt     Options
	workers []workerSet
	penalty *transcribe.RelaxedBarrierPenalty
}

type workerSet struct {
	dyn        collab.SystemDynamics
	cost       collab.CostFunction
	constraint collab.Constraint
}

// New clones dyn, cost and constraint once per worker.
func New(opt Options, dyn collab.SystemDynamics, cost collab.CostFunction, constraint collab.Constraint) *Evaluator {
	n := workerpool.NumWorkers(opt.NumThreads)
	workers := make([]workerSet, n)
	for i := range workers {
		ws := workerSet{dyn: dyn.Clone(), cost: cost.Clone()}
		if constraint != nil {
			ws.constraint = constraint.Clone()
		}
		workers[i] = ws
	}
	return &Evaluator{opt: opt, workers: workers, penalty: transcribe.NewPenalty(opt.PenaltyMu, opt.PenaltyDelta)}
}

// Evaluate integrates every node of (grid, x, u) forward once and returns the
// aggregate performance index, without linearizing anything. initState is the
// true initial condition the trajectory is shot from; any gap between it and
// x[0] is added to StateEqConstraintISE as the shooting defect on interval 0.
func (e *Evaluator) Evaluate(grid ocp.TimeGrid, x, u ocp.Trajectory, initState ocp.Vector, desired *ocp.DesiredTrajectories) (ocp.PerformanceIndex, error) {
	n := len(grid) - 1
	if n < 0 || len(x) != n+1 || len(u) != n {
		return ocp.PerformanceIndex{}, fmt.Errorf("perf: grid has %d nodes, x has %d, u has %d", n+1, len(x), len(u))
	}

	perWorker := make([]ocp.PerformanceIndex, len(e.workers))

	task := func(workerID, i int) error {
		ws := e.workers[workerID]
		if i == n {
			var p ocp.PerformanceIndex
			p.TotalCost = ws.cost.TerminalCost(grid[n], x[n], desired)
			if ws.constraint != nil {
				g, _ := ws.constraint.TerminalInequality(grid[n], x[n])
				if g != nil && g.Len() > 0 {
					p.InequalityConstraintISE = sumSquaredNegativePart(g)
					if e.penalty != nil {
						p.InequalityConstraintPenalty = penaltyValue(e.penalty, g)
					}
				}
			}
			perWorker[workerID] = perWorker[workerID].Add(p)
			return nil
		}

		dt := grid[i+1] - grid[i]
		xNext, err := integrate.Step(e.opt.Integrator, ws.dyn, grid[i], dt, x[i], u[i])
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}

		var p ocp.PerformanceIndex
		residual := mat.NewVecDense(xNext.Len(), nil)
		residual.SubVec(xNext, x[i+1])
		p.StateEqConstraintISE = mat.Dot(residual, residual) * dt
		p.TotalCost = ws.cost.StageCost(grid[i], x[i], u[i], desired) * dt

		if ws.constraint != nil {
			f, _, _ := ws.constraint.StateInputEquality(grid[i], x[i], u[i])
			if f != nil && f.Len() > 0 {
				p.StateInputEqConstraintISE = mat.Dot(f, f) * dt
			}
			g, _, _ := ws.constraint.Inequality(grid[i], x[i], u[i])
			if g != nil && g.Len() > 0 {
				p.InequalityConstraintISE = sumSquaredNegativePart(g) * dt
				if e.penalty != nil {
					p.InequalityConstraintPenalty = penaltyValue(e.penalty, g) * dt
				}
			}
		}

		perWorker[workerID] = perWorker[workerID].Add(p)
		return nil
	}

	if err := workerpool.Dispatch(e.opt.NumThreads, n, task); err != nil {
		return ocp.PerformanceIndex{}, err
	}

	var total ocp.PerformanceIndex
	for _, p := range perWorker {
		total = total.Add(p)
	}
	initResidual := mat.NewVecDense(initState.Len(), nil)
	initResidual.SubVec(initState, x[0])
	total.StateEqConstraintISE += mat.Dot(initResidual, initResidual)
	total.Merit = total.TotalCost + total.InequalityConstraintPenalty
	return total, nil
}

func sumSquaredNegativePart(g ocp.Vector) float64 {
	sum := 0.0
	for i := 0; i < g.Len(); i++ {
		v := g.AtVec(i)
		if v < 0 {
			sum += v * v
		}
	}
	return sum
}

func penaltyValue(p *transcribe.RelaxedBarrierPenalty, g ocp.Vector) float64 {
	total := 0.0
	for i := 0; i < g.Len(); i++ {
		total += p.Value(g.AtVec(i))
	}
	return total
}
