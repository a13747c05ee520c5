package main

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/integrate"
	"shooting-mpc-core/ocp"
	"shooting-mpc-core/sqp"
	"shooting-mpc-core/utils"
)

// Runner drives the receding-horizon loop: at every control period it
// re-solves the OCP from the plant's current state and applies the first
// optimized input to a simulated plant. There is no actuator or robot
// dispatch here; that plumbing lives outside this module by design.
type Runner struct {
	cfg    DemoScenario
	dyn    collab.SystemDynamics
	solver *sqp.Solver
	log    *utils.Logger

	x        ocp.Vector
	previous *ocp.PrimalSolution
	trace    trajectoryLog
}

func NewRunner(cfg DemoScenario, log *utils.Logger) (*Runner, error) {
	dyn, err := selectPlant(cfg.Plant)
	if err != nil {
		return nil, err
	}
	cost := trackingCost{Qpos: 10, Qvel: 1, R: 0.1, QposN: 50, QvelN: 5}
	constraint := accelBoxConstraint{aMax: cfg.AccelMax}

	solver, err := sqp.NewSolver(cfg.Solver, 1, dyn, cost, constraint, nil, log)
	if err != nil {
		return nil, fmt.Errorf("new solver: %w", err)
	}

	x0 := mat.NewVecDense(2, []float64{cfg.InitialPosition, cfg.InitialVelocity})

	return &Runner{cfg: cfg, dyn: dyn, solver: solver, log: log, x: x0}, nil
}

// selectPlant builds the concrete collab.SystemDynamics named by a
// DemoScenario's Plant field. LoadScenario/DefaultScenario already
// guarantee a known name, so an unrecognized value here is a
// programming error rather than a runtime input to validate.
func selectPlant(name string) (collab.SystemDynamics, error) {
	switch name {
	case "", "double_integrator":
		return doubleIntegrator{}, nil
	case "pendulum":
		return pendulumSwingUp{Mass: 1, Length: 1, Gravity: 9.81, Damping: 0.1}, nil
	default:
		return nil, fmt.Errorf("unknown plant %q", name)
	}
}

// Run steps the receding-horizon loop until ctx is canceled or the
// configured simulation duration elapses.
func (r *Runner) Run(ctx context.Context) error {
	desired := &ocp.DesiredTrajectories{
		Time:  []float64{0},
		State: ocp.Trajectory{mat.NewVecDense(2, []float64{r.cfg.TargetPosition, 0})},
	}

	t := 0.0
	for t < r.cfg.SimDurationS {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		solution, err := r.solver.Solve(t, t+r.cfg.HorizonS, r.x, ocp.ModeSchedule{}, desired, r.previous)
		if err != nil {
			return fmt.Errorf("solve at t=%.3f: %w", t, err)
		}
		r.previous = &solution

		u0 := solution.Input[0]
		r.log.Info("t=%.2f x=[%.4f %.4f] u=%.4f", t, r.x.AtVec(0), r.x.AtVec(1), u0.AtVec(0))
		r.trace.append(t, r.x.AtVec(0), r.x.AtVec(1), u0.AtVec(0))

		xNext, err := integrate.Step(integrate.RK4, r.dyn, t, r.cfg.ControlPeriodS, r.x, u0)
		if err != nil {
			return fmt.Errorf("simulate plant at t=%.3f: %w", t, err)
		}
		r.x = xNext
		t += r.cfg.ControlPeriodS
	}

	r.log.Info("%s", r.solver.Report())

	if r.cfg.PlotPath != "" && len(r.trace.t) > 0 {
		if err := savePlot(&r.trace, r.cfg.TargetPosition, r.cfg.PlotPath); err != nil {
			r.log.Warn("plot: %v", err)
		}
	}
	return nil
}
