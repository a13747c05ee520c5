package main

import (
	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/ocp"
)

// accelBoxConstraint enforces -aMax <= u <= aMax as two linear inequality
// rows; it carries no state-input equality and no terminal constraint.
type accelBoxConstraint struct {
	aMax float64
}

var _ collab.Constraint = accelBoxConstraint{}

func (c accelBoxConstraint) Clone() collab.Constraint { return c }

func (c accelBoxConstraint) StateInputEquality(_ float64, _, _ ocp.Vector) (ocp.Vector, ocp.Matrix, ocp.Matrix) {
	return nil, nil, nil
}

func (c accelBoxConstraint) Inequality(_ float64, x, u ocp.Vector) (ocp.Vector, ocp.Matrix, ocp.Matrix) {
	a := u.AtVec(0)
	g := mat.NewVecDense(2, []float64{c.aMax - a, c.aMax + a})
	dgdx := mat.NewDense(2, 2, nil)
	dgdu := mat.NewDense(2, 1, []float64{-1, 1})
	return g, dgdx, dgdu
}

func (c accelBoxConstraint) TerminalInequality(_ float64, _ ocp.Vector) (ocp.Vector, ocp.Matrix) {
	return nil, nil
}
