package sqp

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/ocp"
	"shooting-mpc-core/utils"
)

// scalarIntegrator is dx/dt = u: an already-linear system, so its multiple
// shooting transcription is exact rather than merely a local approximation.
type scalarIntegrator struct{}

func (scalarIntegrator) Clone() collab.SystemDynamics { return scalarIntegrator{} }
func (scalarIntegrator) Flow(_ float64, _, u ocp.Vector) ocp.Vector {
	return mat.NewVecDense(1, []float64{u.AtVec(0)})
}
func (scalarIntegrator) Jacobians(_ float64, _, _ ocp.Vector) (ocp.Matrix, ocp.Matrix) {
	return mat.NewDense(1, 1, []float64{0}), mat.NewDense(1, 1, []float64{1})
}

// quadraticCost is an already-quadratic tracking-to-origin cost, so its
// per-node quadratic approximation is exact everywhere, not just locally.
type quadraticCost struct{ Q, R, Qn float64 }

func (c quadraticCost) Clone() collab.CostFunction { return c }
func (c quadraticCost) StageCost(_ float64, x, u ocp.Vector, _ *ocp.DesiredTrajectories) float64 {
	xv, uv := x.AtVec(0), u.AtVec(0)
	return 0.5*c.Q*xv*xv + 0.5*c.R*uv*uv
}
func (c quadraticCost) StageCostQuadraticApproximation(_ float64, x, u ocp.Vector, _ *ocp.DesiredTrajectories) ocp.CostBlock {
	return ocp.CostBlock{
		Hxx: mat.NewDense(1, 1, []float64{c.Q}),
		Hux: mat.NewDense(1, 1, []float64{0}),
		Huu: mat.NewDense(1, 1, []float64{c.R}),
		Gx:  mat.NewVecDense(1, []float64{c.Q * x.AtVec(0)}),
		Gu:  mat.NewVecDense(1, []float64{c.R * u.AtVec(0)}),
	}
}
func (c quadraticCost) TerminalCost(_ float64, x ocp.Vector, _ *ocp.DesiredTrajectories) float64 {
	xv := x.AtVec(0)
	return 0.5 * c.Qn * xv * xv
}
func (c quadraticCost) TerminalCostQuadraticApproximation(_ float64, x ocp.Vector, _ *ocp.DesiredTrajectories) ocp.CostBlock {
	return ocp.CostBlock{
		Hxx: mat.NewDense(1, 1, []float64{c.Qn}),
		Gx:  mat.NewVecDense(1, []float64{c.Qn * x.AtVec(0)}),
	}
}

func lqTestConfig() Config {
	cfg := DefaultConfig()
	cfg.TimeStep = 0.5
	cfg.Integrator = "euler"
	cfg.MaxIterations = 5
	cfg.NumThreads = 1
	cfg.PenaltyMu = 0
	cfg.PenaltyDelta = 0
	return cfg
}

func TestSolveConvergesInAtMostTwoIterationsForAnExactlyQuadraticProblem(t *testing.T) {
	dyn := scalarIntegrator{}
	cost := quadraticCost{Q: 2, R: 1, Qn: 4}

	solver, err := NewSolver(lqTestConfig(), 1, dyn, cost, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}

	x0 := mat.NewVecDense(1, []float64{5})
	solution, err := solver.Solve(0, 1, x0, ocp.ModeSchedule{}, nil, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	log, err := solver.GetIterationsLog()
	if err != nil {
		t.Fatalf("GetIterationsLog: %v", err)
	}
	if len(log) > 2 {
		t.Errorf("took %d iterations, want at most 2 for an already-quadratic problem", len(log))
	}
	if reason := log[len(log)-1].ConvergenceReason; reason != "converged" {
		t.Errorf("ConvergenceReason = %q, want %q", reason, "converged")
	}
	if got := solution.State[0].AtVec(0); got != 5 {
		t.Errorf("State[0] = %g, want 5 (fixed initial condition)", got)
	}
	if solution.Controller == nil {
		t.Error("expected a non-nil controller")
	}
}

func TestBuildControllerHonorsFeedbackPolicyFlag(t *testing.T) {
	dyn := scalarIntegrator{}
	cost := quadraticCost{Q: 2, R: 1, Qn: 4}

	cfg := lqTestConfig()
	cfg.UseFeedbackPolicy = false
	solver, err := NewSolver(cfg, 1, dyn, cost, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}

	x0 := mat.NewVecDense(1, []float64{1})
	solution, err := solver.Solve(0, 1, x0, ocp.ModeSchedule{}, nil, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if _, ok := solution.Controller.(*ocp.FeedforwardController); !ok {
		t.Errorf("Controller = %T, want *ocp.FeedforwardController when UseFeedbackPolicy=false", solution.Controller)
	}
}

func TestBuildControllerUsesLinearControllerByDefault(t *testing.T) {
	dyn := scalarIntegrator{}
	cost := quadraticCost{Q: 2, R: 1, Qn: 4}
	solver, err := NewSolver(lqTestConfig(), 1, dyn, cost, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}

	x0 := mat.NewVecDense(1, []float64{1})
	solution, err := solver.Solve(0, 1, x0, ocp.ModeSchedule{}, nil, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if _, ok := solution.Controller.(*ocp.LinearController); !ok {
		t.Errorf("Controller = %T, want *ocp.LinearController by default", solution.Controller)
	}
}

func TestNewSolverRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeStep = 0
	_, err := NewSolver(cfg, 1, scalarIntegrator{}, quadraticCost{Q: 1, R: 1, Qn: 1}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error for invalid config")
	}
}

func TestGetIterationsLogBeforeSolveErrors(t *testing.T) {
	solver, err := NewSolver(lqTestConfig(), 1, scalarIntegrator{}, quadraticCost{Q: 1, R: 1, Qn: 1}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	if _, err := solver.GetIterationsLog(); !errors.Is(err, ErrEmptyLogQuery) {
		t.Errorf("GetIterationsLog before Solve: got %v, want %v", err, ErrEmptyLogQuery)
	}
}

func TestNewSolverAcceptsNilLoggerAndStaysSilent(t *testing.T) {
	solver, err := NewSolver(lqTestConfig(), 1, scalarIntegrator{}, quadraticCost{Q: 1, R: 1, Qn: 1}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	if solver.logger == nil {
		t.Fatal("expected NewSolver to install a default logger when nil is passed")
	}
	if solver.logger.Enabled(utils.CRITICAL) {
		t.Error("default logger should be silent (gated above CRITICAL)")
	}
}
