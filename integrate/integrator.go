// Package integrate discretizes a collab.SystemDynamics over one shooting
// interval, either producing only the end state (for the performance
// evaluator, which needs no derivatives) or the end state plus its
// sensitivities with respect to the start state and input (for node
// transcription). Euler, RK2 and RK4 share one generic explicit
// Runge-Kutta stepper parameterized by a Butcher tableau; the sensitivity
// variant propagates the tangent recursion of the same tableau alongside the
// nonlinear stages.
package integrate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/ocp"
)

// Type selects the discretization scheme. The sensitivity integrator paired
// with a Type is implied: it always shares the parent's Butcher tableau.
type Type int

const (
	Euler Type = iota
	RK2
	RK4
)

func (t Type) String() string {
	switch t {
	case Euler:
		return "Euler"
	case RK2:
		return "RK2"
	case RK4:
		return "RK4"
	default:
		return "Unknown"
	}
}

func (t Type) tableau() (butcherTableau, error) {
	switch t {
	case Euler:
		return eulerTableau, nil
	case RK2:
		return rk2Tableau, nil
	case RK4:
		return rk4Tableau, nil
	default:
		return butcherTableau{}, fmt.Errorf("integrate: unknown integrator type %d", t)
	}
}

// Step integrates dyn over [t, t+dt] starting at x with constant input u,
// returning the end state. No jacobians are evaluated.
func Step(kind Type, dyn collab.SystemDynamics, t, dt float64, x, u ocp.Vector) (ocp.Vector, error) {
	tab, err := kind.tableau()
	if err != nil {
		return nil, err
	}
	return step(tab, dyn, t, dt, x, u), nil
}

// StepWithSensitivity integrates dyn over [t, t+dt] and additionally returns
// the discretized jacobians A = dxNext/dx, B = dxNext/du, computed via the
// tangent recursion of the same Runge-Kutta tableau.
func StepWithSensitivity(kind Type, dyn collab.SystemDynamics, t, dt float64, x, u ocp.Vector) (xNext ocp.Vector, A, B ocp.Matrix, err error) {
	tab, err := kind.tableau()
	if err != nil {
		return nil, nil, nil, err
	}
	xNext, A, B = stepWithSensitivity(tab, dyn, t, dt, x, u)
	return xNext, A, B, nil
}

func step(tab butcherTableau, dyn collab.SystemDynamics, t, dt float64, x, u ocp.Vector) ocp.Vector {
	nx := x.Len()
	stageK := make([]ocp.Vector, tab.stages)

	for i := 0; i < tab.stages; i++ {
		xi := mat.VecDenseCopyOf(x)
		for j := 0; j < i; j++ {
			if tab.a[i][j] == 0 {
				continue
			}
			xi.AddScaledVec(xi, dt*tab.a[i][j], stageK[j])
		}
		stageK[i] = dyn.Flow(t+tab.c[i]*dt, xi, u)
	}

	xNext := mat.NewVecDense(nx, nil)
	xNext.CopyVec(x)
	for i := 0; i < tab.stages; i++ {
		if tab.b[i] == 0 {
			continue
		}
		xNext.AddScaledVec(xNext, dt*tab.b[i], stageK[i])
	}
	return xNext
}

func stepWithSensitivity(tab butcherTableau, dyn collab.SystemDynamics, t, dt float64, x, u ocp.Vector) (ocp.Vector, ocp.Matrix, ocp.Matrix) {
	nx, nu := x.Len(), u.Len()

	stageK := make([]ocp.Vector, tab.stages)
	dKdx := make([]ocp.Matrix, tab.stages)
	dKdu := make([]ocp.Matrix, tab.stages)

	identity := mat.NewDense(nx, nx, nil)
	for i := 0; i < nx; i++ {
		identity.Set(i, i, 1)
	}

	for i := 0; i < tab.stages; i++ {
		xi := mat.VecDenseCopyOf(x)
		dXidx := mat.DenseCopyOf(identity)
		dXidu := mat.NewDense(nx, nu, nil)

		for j := 0; j < i; j++ {
			if tab.a[i][j] == 0 {
				continue
			}
			xi.AddScaledVec(xi, dt*tab.a[i][j], stageK[j])
			dXidx.Add(dXidx, scale(dt*tab.a[i][j], dKdx[j]))
			dXidu.Add(dXidu, scale(dt*tab.a[i][j], dKdu[j]))
		}

		ti := t + tab.c[i]*dt
		stageK[i] = dyn.Flow(ti, xi, u)
		fx, fu := dyn.Jacobians(ti, xi, u)

		dki_dx := mat.NewDense(nx, nx, nil)
		dki_dx.Mul(fx, dXidx)
		dKdx[i] = dki_dx

		dki_du := mat.NewDense(nx, nu, nil)
		dki_du.Mul(fx, dXidu)
		dki_du.Add(dki_du, fu)
		dKdu[i] = dki_du
	}

	xNext := mat.VecDenseCopyOf(x)
	A := mat.DenseCopyOf(identity)
	B := mat.NewDense(nx, nu, nil)
	for i := 0; i < tab.stages; i++ {
		if tab.b[i] == 0 {
			continue
		}
		xNext.AddScaledVec(xNext, dt*tab.b[i], stageK[i])
		A.Add(A, scale(dt*tab.b[i], dKdx[i]))
		B.Add(B, scale(dt*tab.b[i], dKdu[i]))
	}

	return xNext, A, B
}

func scale(alpha float64, m ocp.Matrix) ocp.Matrix {
	out := mat.NewDense(m.RawMatrix().Rows, m.RawMatrix().Cols, nil)
	out.Scale(alpha, m)
	return out
}
