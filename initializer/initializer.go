// Package initializer builds the trajectory an SQP solve starts from: a
// warm start interpolating the previous solve's state trajectory and
// resampling its controller wherever the new time grid overlaps it, falling
// back to a constant hold at the measured initial state and an
// operating-trajectory heuristic (or zero input) for anything the previous
// solution does not cover.
package initializer

import (
	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/ocp"
)

// Initialize builds the initial (x, u) trajectory over grid. x0 is the
// measured initial state; previous is the last solve's PrimalSolution (nil
// for a cold start); operating is the input heuristic used wherever previous
// does not cover a node (nil falls back to a zero input).
//
// x[0] is always x0: node 0's shooting defect is the outer solve's job, not
// the initializer's, but there is no reason to start it away from the true
// measured state when the initializer already knows it exactly. On a cold
// start every later x[i] holds x0 constant, since there is no prior shape to
// guess from. On a warm start x[i>0] is the linear interpolation of
// previous.State over previous.TimeGrid at grid[i], held constant past
// either end of the previous grid.
func Initialize(nu int, grid ocp.TimeGrid, x0 ocp.Vector, previous *ocp.PrimalSolution, operating collab.OperatingTrajectories) (ocp.Trajectory, ocp.Trajectory, error) {
	n := len(grid) - 1
	x := make(ocp.Trajectory, n+1)
	u := make(ocp.Trajectory, n)

	warmState := previous != nil && len(previous.State) > 0 && len(previous.State) == len(previous.TimeGrid)

	x[0] = mat.VecDenseCopyOf(x0)
	for i := 1; i <= n; i++ {
		if warmState {
			x[i] = interpolateState(previous.TimeGrid, previous.State, grid[i])
		} else {
			x[i] = mat.VecDenseCopyOf(x0)
		}
	}

	for i := 0; i < n; i++ {
		t, dt := grid[i], grid[i+1]-grid[i]
		u[i] = sampleInput(t, dt, x[i], nu, previous, operating)
	}

	return x, u, nil
}

// interpolateState linearly interpolates traj (sampled at grid) at t,
// holding the boundary value constant for t outside [grid[0], grid[last]].
func interpolateState(grid ocp.TimeGrid, traj ocp.Trajectory, t float64) ocp.Vector {
	last := len(grid) - 1
	if t <= grid[0] {
		return mat.VecDenseCopyOf(traj[0])
	}
	if t >= grid[last] {
		return mat.VecDenseCopyOf(traj[last])
	}
	for i := 0; i < last; i++ {
		if t < grid[i+1] {
			frac := (t - grid[i]) / (grid[i+1] - grid[i])
			diff := mat.NewVecDense(traj[i].Len(), nil)
			diff.SubVec(traj[i+1], traj[i])
			out := mat.NewVecDense(traj[i].Len(), nil)
			out.AddScaledVec(traj[i], frac, diff)
			return out
		}
	}
	return mat.VecDenseCopyOf(traj[last])
}

// sampleInput picks the input for interval [t, t+dt] starting at state x:
// the previous solution's controller if the interval falls within its time
// grid, otherwise the operating heuristic, otherwise zero.
func sampleInput(t, dt float64, x ocp.Vector, nu int, previous *ocp.PrimalSolution, operating collab.OperatingTrajectories) ocp.Vector {
	if previous != nil && previous.Controller != nil && covers(previous.TimeGrid, t) {
		return previous.Controller.Sample(t, x)
	}
	if operating != nil {
		return operating.Sample(x, t, t+dt)
	}
	return mat.NewVecDense(nu, nil)
}

func covers(grid ocp.TimeGrid, t float64) bool {
	if len(grid) == 0 {
		return false
	}
	return t >= grid[0] && t <= grid[len(grid)-1]
}
