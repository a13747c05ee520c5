package main

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/ocp"
)

// pendulumSwingUp is a single-link torque-actuated pendulum: state
// (theta, omega) measured from the downward equilibrium, input joint
// torque. Swing-up to the upright equilibrium theta=pi is a standard
// nonlinear benchmark for a receding-horizon controller since the
// linearization at the start of the maneuver points the wrong way.
type pendulumSwingUp struct {
	Mass, Length, Gravity, Damping float64
}

var _ collab.SystemDynamics = pendulumSwingUp{}

func (p pendulumSwingUp) Clone() collab.SystemDynamics { return p }

func (p pendulumSwingUp) inertia() float64 {
	return p.Mass * p.Length * p.Length / 3.0
}

func (p pendulumSwingUp) Flow(_ float64, x, u ocp.Vector) ocp.Vector {
	theta, omega := x.AtVec(0), x.AtVec(1)
	torque := u.AtVec(0)

	gravityTerm := 0.5 * p.Mass * p.Gravity * p.Length * math.Sin(theta)
	omegaDot := (torque - gravityTerm - p.Damping*omega) / p.inertia()

	dx := mat.NewVecDense(2, nil)
	dx.SetVec(0, omega)
	dx.SetVec(1, omegaDot)
	return dx
}

func (p pendulumSwingUp) Jacobians(_ float64, x, _ ocp.Vector) (ocp.Matrix, ocp.Matrix) {
	theta := x.AtVec(0)
	inertia := p.inertia()

	dOmegaDotDTheta := -0.5 * p.Mass * p.Gravity * p.Length * math.Cos(theta) / inertia
	dOmegaDotDOmega := -p.Damping / inertia

	dfdx := mat.NewDense(2, 2, []float64{
		0, 1,
		dOmegaDotDTheta, dOmegaDotDOmega,
	})
	dfdu := mat.NewDense(2, 1, []float64{0, 1 / inertia})
	return dfdx, dfdu
}
