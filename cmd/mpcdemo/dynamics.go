package main

import (
	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/ocp"
)

// doubleIntegrator is a 1-D point mass: state (position, velocity), input
// acceleration. It has no internal state of its own, so Clone is trivial.
type doubleIntegrator struct{}

var _ collab.SystemDynamics = doubleIntegrator{}

func (doubleIntegrator) Clone() collab.SystemDynamics { return doubleIntegrator{} }

func (doubleIntegrator) Flow(_ float64, x, u ocp.Vector) ocp.Vector {
	dx := mat.NewVecDense(2, nil)
	dx.SetVec(0, x.AtVec(1))
	dx.SetVec(1, u.AtVec(0))
	return dx
}

func (doubleIntegrator) Jacobians(_ float64, _, _ ocp.Vector) (ocp.Matrix, ocp.Matrix) {
	dfdx := mat.NewDense(2, 2, []float64{
		0, 1,
		0, 0,
	})
	dfdu := mat.NewDense(2, 1, []float64{0, 1})
	return dfdx, dfdu
}
