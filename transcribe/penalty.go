package transcribe

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/ocp"
)

// RelaxedBarrierPenalty is a smooth barrier defined for infeasible iterates
// (unlike a log barrier), which is what lets the line-search warm-start from
// an infeasible candidate. Mu and Delta must both be positive to activate
// the penalty; see NewPenalty.
type RelaxedBarrierPenalty struct {
	Mu    float64
	Delta float64
}

// NewPenalty returns a barrier if mu and delta are both strictly positive,
// or nil (no penalty) otherwise.
func NewPenalty(mu, delta float64) *RelaxedBarrierPenalty {
	if mu > 0 && delta > 0 {
		return &RelaxedBarrierPenalty{Mu: mu, Delta: delta}
	}
	return nil
}

// Value returns the barrier's contribution at z, extended quadratically
// below Delta so it remains smooth and defined for z <= 0. Exported for
// callers that only need the penalty value, not a folded quadratic model.
func (p *RelaxedBarrierPenalty) Value(z float64) float64 {
	return p.value(z)
}

// value is the unexported core used by both Value and quadraticApproximation.
func (p *RelaxedBarrierPenalty) value(z float64) float64 {
	if z > p.Delta {
		return -p.Mu * math.Log(z)
	}
	r := (z - 2*p.Delta) / p.Delta
	return p.Mu * (0.5*r*r - 0.5 - math.Log(p.Delta))
}

// gradient returns d(value)/dz at z.
func (p *RelaxedBarrierPenalty) gradient(z float64) float64 {
	if z > p.Delta {
		return -p.Mu / z
	}
	return p.Mu * (z - 2*p.Delta) / (p.Delta * p.Delta)
}

// hessian returns d2(value)/dz2 at z; constant (hence PSD) below Delta.
func (p *RelaxedBarrierPenalty) hessian(z float64) float64 {
	if z > p.Delta {
		return p.Mu / (z * z)
	}
	return p.Mu / (p.Delta * p.Delta)
}

// quadraticApproximation folds the barrier's quadratic model of every
// inequality row into the given cost block (Hxx, Hux, Huu, Gx, Gu are
// updated in place) and returns the total penalty value. dgdu may be nil at
// the terminal node.
func (p *RelaxedBarrierPenalty) quadraticApproximation(g ocp.Vector, dgdx, dgdu ocp.Matrix, cost *ocp.CostBlock) float64 {
	if p == nil || g == nil {
		return 0
	}
	total := 0.0
	nx, _ := dgdx.Dims()
	_ = nx
	for row := 0; row < g.Len(); row++ {
		z := g.AtVec(row)
		total += p.value(z)
		bp := p.gradient(z)
		bpp := p.hessian(z)

		dgdxRow := mat.Row(nil, row, dgdx)
		gxRow := mat.NewVecDense(len(dgdxRow), dgdxRow)

		cost.Gx.AddScaledVec(cost.Gx, bp, gxRow)
		addOuter(cost.Hxx, bpp, gxRow, gxRow)

		if dgdu != nil && cost.Gu != nil {
			dguRow := mat.Row(nil, row, dgdu)
			guRow := mat.NewVecDense(len(dguRow), dguRow)
			cost.Gu.AddScaledVec(cost.Gu, bp, guRow)
			addOuter(cost.Huu, bpp, guRow, guRow)
			addOuterCross(cost.Hux, bpp, guRow, gxRow)
		}
	}
	return total
}

// addOuter adds alpha*a*a^T into dst (dst assumed symmetric-shaped Dense).
func addOuter(dst ocp.Matrix, alpha float64, a, b *mat.VecDense) {
	n, _ := dst.Dims()
	tmp := mat.NewDense(n, n, nil)
	tmp.Outer(alpha, a, b)
	dst.Add(dst, tmp)
}

// addOuterCross adds alpha*u*x^T into dst, shaped (nu x nx).
func addOuterCross(dst ocp.Matrix, alpha float64, u, x *mat.VecDense) {
	nu := u.Len()
	nx := x.Len()
	tmp := mat.NewDense(nu, nx, nil)
	tmp.Outer(alpha, u, x)
	dst.Add(dst, tmp)
}
