// Package sqp implements the multiple-shooting sequential quadratic
// programming driver: it repeatedly assembles a structured QP around the
// current trajectory, solves it, accepts or rejects the step through a
// filter line-search, and emits a controller once it converges or runs out
// of iterations.
package sqp

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/assemble"
	"shooting-mpc-core/collab"
	"shooting-mpc-core/initializer"
	"shooting-mpc-core/integrate"
	"shooting-mpc-core/linesearch"
	"shooting-mpc-core/ocp"
	"shooting-mpc-core/perf"
	"shooting-mpc-core/qp"
	"shooting-mpc-core/utils"
)

// ErrEmptyLogQuery is returned by GetIterationsLog when no solve has run yet.
var ErrEmptyLogQuery = errors.New("sqp: no iteration log available, Solve has not run")

// IterationLog records one outer-loop iteration for diagnostics and testing.
type IterationLog struct {
	Iteration         int
	Performance       ocp.PerformanceIndex
	StepNorm          float64
	StepLength        float64
	Regime            linesearch.Regime
	ConvergenceReason string
}

// Solver is the multiple-shooting SQP driver.
type Solver struct {
	cfg        Config
	integrator integrate.Type

	costProto       collab.CostFunction
	constraintProto collab.Constraint
	operating       collab.OperatingTrajectories

	assembler *assemble.Assembler
	evaluator *perf.Evaluator
	backend   qp.Backend
	logger    *utils.Logger
	numInputs int

	log     []IterationLog
	timings phaseTimings
}

type phaseTimings struct {
	assemble   time.Duration
	solveQP    time.Duration
	lineSearch time.Duration
	total      time.Duration
	iterations int
}

// NewSolver validates cfg and clones the collaborators once per worker.
// numInputs is the input dimension of dyn, needed by the trajectory
// initializer's cold-start path when neither a previous solution nor an
// operating trajectory covers a node. logger may be nil, in which case a
// silent logger is used.
func NewSolver(cfg Config, numInputs int, dyn collab.SystemDynamics, cost collab.CostFunction, constraint collab.Constraint,
	operating collab.OperatingTrajectories, logger *utils.Logger) (*Solver, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := integratorType(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.NewConsoleLogger(utils.CRITICAL + 1) // effectively silent
	}

	assembleOpt := assemble.Options{
		NumThreads:   cfg.NumThreads,
		Integrator:   kind,
		Project:      cfg.ProjectStateInputEqualityConstraints,
		PenaltyMu:    cfg.PenaltyMu,
		PenaltyDelta: cfg.PenaltyDelta,
	}
	perfOpt := perf.Options{
		NumThreads:   cfg.NumThreads,
		Integrator:   kind,
		PenaltyMu:    cfg.PenaltyMu,
		PenaltyDelta: cfg.PenaltyDelta,
	}

	return &Solver{
		cfg:             cfg,
		integrator:      kind,
		costProto:       cost,
		constraintProto: constraint,
		operating:       operating,
		assembler:       assemble.New(assembleOpt, dyn, cost, constraint),
		evaluator:       perf.New(perfOpt, dyn, cost, constraint),
		backend:         qp.NewRiccatiSolver(),
		logger:          logger,
		numInputs:       numInputs,
	}, nil
}

// Solve runs the outer SQP loop over [t0, tf] starting from x0, warm-started
// from previous when it is non-nil.
func (s *Solver) Solve(t0, tf float64, x0 ocp.Vector, modes ocp.ModeSchedule, desired *ocp.DesiredTrajectories, previous *ocp.PrimalSolution) (ocp.PrimalSolution, error) {
	start := time.Now()
	s.log = s.log[:0]
	s.timings = phaseTimings{}

	grid := ocp.BuildTimeGrid(t0, tf, s.cfg.TimeStep, modes.EventTimes, s.cfg.EventSnapEpsilon)

	x, u, err := initializer.Initialize(s.numInputs, grid, x0, previous, s.operating)
	if err != nil {
		return ocp.PrimalSolution{}, fmt.Errorf("sqp: initialize trajectory: %w", err)
	}

	baseline, err := s.evaluator.Evaluate(grid, x, u, x0, desired)
	if err != nil {
		return ocp.PrimalSolution{}, fmt.Errorf("sqp: evaluate initial trajectory: %w", err)
	}

	var last assemble.Result
	convergenceReason := "max iterations reached"
	iterationsRun := 0

	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		iterationsRun = iter + 1
		s.timings.iterations++

		tAssemble := time.Now()
		asm, err := s.assembler.Assemble(grid, x, u, x0, desired)
		s.timings.assemble += time.Since(tAssemble)
		if err != nil {
			return ocp.PrimalSolution{}, fmt.Errorf("sqp: assemble subproblem at iteration %d: %w", iter, err)
		}
		last = asm

		size := asm.Size
		if err := s.backend.Resize(size); err != nil {
			return ocp.PrimalSolution{}, fmt.Errorf("sqp: resize backend: %w", err)
		}

		deltaX0 := mat.NewVecDense(x[0].Len(), nil)
		deltaX0.SubVec(x0, x[0])

		tSolve := time.Now()
		deltaX, deltaUReduced, err := s.backend.Solve(deltaX0, asm.Dynamics, asm.Cost, asm.Inequality)
		s.timings.solveQP += time.Since(tSolve)
		if err != nil {
			return ocp.PrimalSolution{}, fmt.Errorf("%w: iteration %d: %v", qp.ErrQPSolveFailure, iter, err)
		}

		deltaU := reconstructInputSteps(asm.Constraints, deltaX, deltaUReduced)

		deltaXnorm := vecTrajNorm(deltaX)
		deltaUnorm := vecTrajNorm(deltaU)
		if s.logger.Enabled(utils.DEBUG) && s.cfg.PrintSolverStatus {
			s.logger.Debug("sqp iter %d: cost=%.6g violation=%.3e deltaXnorm=%.3e deltaUnorm=%.3e", iter, asm.Performance.TotalCost, asm.Performance.ConstraintViolation(), deltaXnorm, deltaUnorm)
		}

		tLine := time.Now()
		lsResult, err := linesearch.Search(s.cfg.LineSearch, asm.Performance, func(alpha float64) (linesearch.Candidate, error) {
			xCand := applyStep(x, deltaX, alpha)
			uCand := applyStep(u, deltaU, alpha)
			p, err := s.evaluator.Evaluate(grid, xCand, uCand, x0, desired)
			if err != nil {
				return linesearch.Candidate{}, err
			}
			return linesearch.Candidate{Performance: p, State: xCand, Input: uCand}, nil
		})
		s.timings.lineSearch += time.Since(tLine)
		if err != nil {
			return ocp.PrimalSolution{}, fmt.Errorf("sqp: line search at iteration %d: %w", iter, err)
		}

		if s.cfg.PrintLineSearch && s.logger.Enabled(utils.DEBUG) {
			s.logger.Debug("sqp iter %d: linesearch alpha=%.4g regime=%s accepted=%t", iter, lsResult.StepLength, lsResult.Regime, lsResult.Accepted)
		}

		s.log = append(s.log, IterationLog{
			Iteration:   iter,
			Performance: lsResult.Performance,
			StepNorm:    math.Hypot(deltaXnorm, deltaUnorm),
			StepLength:  lsResult.StepLength,
			Regime:      lsResult.Regime,
		})

		if !lsResult.Accepted {
			// Line search exhausted every step length without acceptance:
			// the outer loop terminates on the pre-line-search iterate.
			convergenceReason = "converged"
			s.log[len(s.log)-1].ConvergenceReason = convergenceReason
			break
		}

		x, u = lsResult.State, lsResult.Input
		baseline = lsResult.Performance

		if lsResult.StepLength*deltaXnorm < s.cfg.DeltaTolerance && lsResult.StepLength*deltaUnorm < s.cfg.DeltaTolerance &&
			baseline.ConstraintViolation() < s.cfg.ConstraintTolerance {
			convergenceReason = "converged"
			s.log[len(s.log)-1].ConvergenceReason = convergenceReason
			break
		}
	}

	if len(s.log) > 0 && s.log[len(s.log)-1].ConvergenceReason == "" {
		s.log[len(s.log)-1].ConvergenceReason = convergenceReason
	}

	s.timings.total = time.Since(start)

	controller, err := s.buildController(grid, x, u, last)
	if err != nil {
		return ocp.PrimalSolution{}, fmt.Errorf("sqp: build controller: %w", err)
	}

	if s.cfg.PrintSolverStatistics && s.logger.Enabled(utils.INFO) {
		s.logger.Info("sqp done: %d iterations, reason=%q, final cost=%.6g", iterationsRun, convergenceReason, baseline.TotalCost)
	}

	return ocp.PrimalSolution{
		TimeGrid:     grid,
		State:        x,
		Input:        u,
		ModeSchedule: modes,
		Controller:   controller,
	}, nil
}

// GetIterationsLog returns the diagnostic trace of the most recent Solve.
func (s *Solver) GetIterationsLog() ([]IterationLog, error) {
	if len(s.log) == 0 {
		return nil, ErrEmptyLogQuery
	}
	out := make([]IterationLog, len(s.log))
	copy(out, s.log)
	return out, nil
}

// Report renders a per-phase timing breakdown of the most recent Solve.
func (s *Solver) Report() string {
	t := s.timings
	if t.iterations == 0 {
		return "sqp: no solve has run yet"
	}
	pct := func(d time.Duration) float64 {
		if t.total <= 0 {
			return 0
		}
		return 100 * float64(d) / float64(t.total)
	}
	return fmt.Sprintf(
		"sqp report: %d iterations, total %v\n  assemble:    %v (%.1f%%, %v/iter)\n  qp solve:    %v (%.1f%%, %v/iter)\n  line search: %v (%.1f%%, %v/iter)",
		t.iterations, t.total,
		t.assemble, pct(t.assemble), t.assemble/time.Duration(t.iterations),
		t.solveQP, pct(t.solveQP), t.solveQP/time.Duration(t.iterations),
		t.lineSearch, pct(t.lineSearch), t.lineSearch/time.Duration(t.iterations),
	)
}

func reconstructInputSteps(constraints []ocp.ConstraintBlock, deltaX []ocp.Vector, deltaUReduced []ocp.Vector) []ocp.Vector {
	n := len(deltaUReduced)
	out := make([]ocp.Vector, n)
	for i := 0; i < n; i++ {
		c := constraints[i]
		if !c.Projected {
			out[i] = deltaUReduced[i]
			continue
		}
		du := mat.NewVecDense(c.F.Len(), nil)
		du.MulVec(c.Dfdx, deltaX[i])
		tmp := mat.NewVecDense(c.F.Len(), nil)
		tmp.MulVec(c.Dfdu, deltaUReduced[i])
		du.AddVec(du, tmp)
		du.AddVec(du, c.F)
		out[i] = du
	}
	return out
}

// vecTrajNorm returns the combined Euclidean norm of a per-node vector
// sequence, treating the whole sequence as one stacked vector.
func vecTrajNorm(vs []ocp.Vector) float64 {
	sq := 0.0
	for _, v := range vs {
		n := floats.Norm(v.RawVector().Data, 2)
		sq += n * n
	}
	return math.Sqrt(sq)
}

func applyStep(base ocp.Trajectory, delta []ocp.Vector, alpha float64) ocp.Trajectory {
	out := make(ocp.Trajectory, len(base))
	for i, v := range base {
		next := mat.NewVecDense(v.Len(), nil)
		next.AddScaledVec(v, alpha, delta[i])
		out[i] = next
	}
	return out
}
