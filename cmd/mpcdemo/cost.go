package main

import (
	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/ocp"
)

// trackingCost penalizes deviation from a reference position (held at the
// origin unless desired.State supplies one), velocity, and control effort.
type trackingCost struct {
	Qpos, Qvel, R   float64
	QposN, QvelN    float64
}

var _ collab.CostFunction = trackingCost{}

func (c trackingCost) Clone() collab.CostFunction { return c }

func (c trackingCost) reference(desired *ocp.DesiredTrajectories, t float64) (posRef, velRef float64) {
	if desired == nil || len(desired.State) == 0 {
		return 0, 0
	}
	idx := nearestIndex(desired.Time, t)
	ref := desired.State[idx]
	return ref.AtVec(0), ref.AtVec(1)
}

func (c trackingCost) StageCost(t float64, x, u ocp.Vector, desired *ocp.DesiredTrajectories) float64 {
	posRef, velRef := c.reference(desired, t)
	dp, dv, a := x.AtVec(0)-posRef, x.AtVec(1)-velRef, u.AtVec(0)
	return 0.5*c.Qpos*dp*dp + 0.5*c.Qvel*dv*dv + 0.5*c.R*a*a
}

func (c trackingCost) StageCostQuadraticApproximation(t float64, x, u ocp.Vector, desired *ocp.DesiredTrajectories) ocp.CostBlock {
	posRef, velRef := c.reference(desired, t)
	dp, dv := x.AtVec(0)-posRef, x.AtVec(1)-velRef

	hxx := mat.NewDense(2, 2, []float64{c.Qpos, 0, 0, c.Qvel})
	hux := mat.NewDense(1, 2, []float64{0, 0})
	huu := mat.NewDense(1, 1, []float64{c.R})
	gx := mat.NewVecDense(2, []float64{c.Qpos * dp, c.Qvel * dv})
	gu := mat.NewVecDense(1, []float64{c.R * u.AtVec(0)})

	return ocp.CostBlock{Hxx: hxx, Hux: hux, Huu: huu, Gx: gx, Gu: gu}
}

func (c trackingCost) TerminalCost(t float64, x ocp.Vector, desired *ocp.DesiredTrajectories) float64 {
	posRef, velRef := c.reference(desired, t)
	dp, dv := x.AtVec(0)-posRef, x.AtVec(1)-velRef
	return 0.5*c.QposN*dp*dp + 0.5*c.QvelN*dv*dv
}

func (c trackingCost) TerminalCostQuadraticApproximation(t float64, x ocp.Vector, desired *ocp.DesiredTrajectories) ocp.CostBlock {
	posRef, velRef := c.reference(desired, t)
	dp, dv := x.AtVec(0)-posRef, x.AtVec(1)-velRef

	hxx := mat.NewDense(2, 2, []float64{c.QposN, 0, 0, c.QvelN})
	gx := mat.NewVecDense(2, []float64{c.QposN * dp, c.QvelN * dv})

	return ocp.CostBlock{Hxx: hxx, Gx: gx}
}

func nearestIndex(times []float64, t float64) int {
	if len(times) == 0 {
		return 0
	}
	best, bestDist := 0, absF(times[0]-t)
	for i, ti := range times {
		if d := absF(ti - t); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
