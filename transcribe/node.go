// Package transcribe implements the per-interval local linear-quadratic
// approximation of a shooting node: dynamics linearization and
// discretization, quadratic cost, and constraint projection or pass-through,
// with an optional relaxed-barrier penalty folded into the quadratic model.
package transcribe

import (
	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/collab"
	"shooting-mpc-core/integrate"
	"shooting-mpc-core/ocp"
)

// Options configures a single node's transcription.
type Options struct {
	Integrator integrate.Type
	Project    bool
	Penalty    *RelaxedBarrierPenalty
}

// IntermediateResult bundles everything a worker produces for one
// intermediate node.
type IntermediateResult struct {
	Dynamics    ocp.DynamicsBlock
	Cost        ocp.CostBlock
	Constraint  ocp.ConstraintBlock
	Inequality  ocp.InequalityBlock
	Performance ocp.PerformanceIndex
}

// IntermediateNode transcribes shooting interval i: integrates the dynamics
// from x_i with input u_i to obtain the defect against x_{i+1}, quadratizes
// the stage cost, and folds in any equality/inequality constraint.
func IntermediateNode(dyn collab.SystemDynamics, cost collab.CostFunction, constraint collab.Constraint,
	desired *ocp.DesiredTrajectories, opt Options, t, dt float64, xi, xip1, ui ocp.Vector) (IntermediateResult, error) {

	var result IntermediateResult

	xNext, A, B, err := integrate.StepWithSensitivity(opt.Integrator, dyn, t, dt, xi, ui)
	if err != nil {
		return result, err
	}
	bias := mat.NewVecDense(xNext.Len(), nil)
	bias.SubVec(xNext, mulAddVec(A, B, xi, ui))
	result.Dynamics = ocp.DynamicsBlock{A: A, B: B, Bias: bias}

	residual := mat.NewVecDense(xNext.Len(), nil)
	residual.SubVec(xNext, xip1)
	result.Performance.StateEqConstraintISE = mat.Dot(residual, residual) * dt

	quad := cost.StageCostQuadraticApproximation(t, xi, ui, desired)
	result.Performance.TotalCost = cost.StageCost(t, xi, ui, desired) * dt

	if constraint != nil {
		fEq, cx, cu := constraint.StateInputEquality(t, xi, ui)
		if fEq != nil && fEq.Len() > 0 {
			result.Performance.StateInputEqConstraintISE = mat.Dot(fEq, fEq) * dt
		}

		if opt.Project {
			block, err := projectEquality(fEq, cx, cu, xi.Len(), ui.Len())
			if err != nil {
				return result, err
			}
			result.Constraint = block
			projectCost(&quad, block)
			projectDynamics(&result.Dynamics, block)
		} else if fEq != nil && fEq.Len() > 0 {
			result.Constraint = ocp.ConstraintBlock{Projected: false, F: fEq, Dfdx: cx, Dfdu: cu}
		}

		g, dgdx, dgdu := constraint.Inequality(t, xi, ui)
		if g != nil && g.Len() > 0 {
			result.Performance.InequalityConstraintISE = sumSquaredNegativePart(g) * dt
			if opt.Penalty != nil {
				// Folded into the quadratic model below: the backend never
				// needs to see it as a raw, unhandled row.
				result.Performance.InequalityConstraintPenalty = opt.Penalty.quadraticApproximation(g, dgdx, dgdu, &quad) * dt
			} else {
				result.Inequality = ocp.InequalityBlock{G: g, Dgdx: dgdx, Dgdu: dgdu}
			}
		}
	}

	scaleCostBlock(&quad, dt)
	result.Cost = quad
	return result, nil
}

// TerminalResult bundles the transcription of the horizon's final node.
type TerminalResult struct {
	Cost        ocp.CostBlock
	Constraint  ocp.ConstraintBlock
	Inequality  ocp.InequalityBlock
	Performance ocp.PerformanceIndex
}

// TerminalNode transcribes the terminal node N: only state cost and
// state-only constraints apply.
func TerminalNode(cost collab.CostFunction, constraint collab.Constraint, penalty *RelaxedBarrierPenalty,
	desired *ocp.DesiredTrajectories, t float64, xN ocp.Vector) TerminalResult {

	var result TerminalResult
	quad := cost.TerminalCostQuadraticApproximation(t, xN, desired)
	result.Performance.TotalCost = cost.TerminalCost(t, xN, desired)

	if constraint != nil {
		g, dgdx := constraint.TerminalInequality(t, xN)
		if g != nil && g.Len() > 0 {
			result.Performance.InequalityConstraintISE = sumSquaredNegativePart(g)
			if penalty != nil {
				result.Performance.InequalityConstraintPenalty = penalty.quadraticApproximation(g, dgdx, nil, &quad)
			} else {
				result.Inequality = ocp.InequalityBlock{G: g, Dgdx: dgdx}
			}
		}
	}

	result.Cost = quad
	return result
}

// projectCost rewrites the intermediate cost block into the reduced input
// uTilde space given the node's projection, so the downstream QP never sees
// the real (constrained) input.
//
// With u = f + dfdx*x + dfdu*uTilde, substituting into
// 1/2 [x;u]^T H [x;u] + g^T [x;u] yields a quadratic purely in [x; uTilde].
func projectCost(quad *ocp.CostBlock, block ocp.ConstraintBlock) {
	P, D := block.Dfdu, block.Dfdx
	f := block.F

	// Hxx' = Hxx + D^T Huu D + D^T Hux + Hux^T D
	huuD := mat.NewDense(rows(quad.Huu), cols(D), nil)
	huuD.Mul(quad.Huu, D)
	dtHuuD := mat.NewDense(cols(D), cols(D), nil)
	dtHuuD.Mul(D.T(), huuD)

	dtHux := mat.NewDense(cols(D), cols(quad.Hux), nil)
	dtHux.Mul(D.T(), quad.Hux)

	hxxNew := mat.NewDense(rows(quad.Hxx), cols(quad.Hxx), nil)
	hxxNew.Add(quad.Hxx, dtHuuD)
	hxxNew.Add(hxxNew, dtHux)
	hxxNew.Add(hxxNew, dense(dtHux.T()))
	quad.Hxx = hxxNew

	// Hux' = P^T Hux + P^T Huu D
	ptHux := mat.NewDense(cols(P), cols(quad.Hux), nil)
	ptHux.Mul(P.T(), quad.Hux)
	ptHuuD := mat.NewDense(cols(P), cols(D), nil)
	ptHuuD.Mul(P.T(), huuD)
	huxNew := mat.NewDense(cols(P), cols(D), nil)
	huxNew.Add(ptHux, ptHuuD)

	// Huu' = P^T Huu P
	huuP := mat.NewDense(rows(quad.Huu), cols(P), nil)
	huuP.Mul(quad.Huu, P)
	huuNew := mat.NewDense(cols(P), cols(P), nil)
	huuNew.Mul(P.T(), huuP)

	// gx' = gx + D^T gu + D^T Huu f + Hux^T f
	huuF := mat.NewVecDense(rows(quad.Huu), nil)
	huuF.MulVec(quad.Huu, f)
	dtGu := mat.NewVecDense(cols(D), nil)
	dtGu.MulVec(D.T(), quad.Gu)
	dtHuuF := mat.NewVecDense(cols(D), nil)
	dtHuuF.MulVec(D.T(), huuF)
	huxTf := mat.NewVecDense(cols(quad.Hux), nil)
	huxTf.MulVec(quad.Hux.T(), f)

	gxNew := mat.NewVecDense(quad.Gx.Len(), nil)
	gxNew.AddVec(quad.Gx, dtGu)
	gxNew.AddVec(gxNew, dtHuuF)
	gxNew.AddVec(gxNew, huxTf)

	// gu' = P^T gu + P^T Huu f
	ptGu := mat.NewVecDense(cols(P), nil)
	ptGu.MulVec(P.T(), quad.Gu)
	ptHuuF := mat.NewVecDense(cols(P), nil)
	ptHuuF.MulVec(P.T(), huuF)
	guNew := mat.NewVecDense(cols(P), nil)
	guNew.AddVec(ptGu, ptHuuF)

	quad.Hux = huxNew
	quad.Huu = huuNew
	quad.Gx = gxNew
	quad.Gu = guNew
}

// scaleCostBlock integrates a per-unit-time quadratic cost model over an
// interval of length dt. Constraint.Inequality and StateInputEquality report
// values at a point, but CostFunction reports a rate (matching StageCost),
// so this is the transcriber's job rather than the cost function's.
func scaleCostBlock(quad *ocp.CostBlock, dt float64) {
	quad.Hxx.Scale(dt, quad.Hxx)
	quad.Gx.ScaleVec(dt, quad.Gx)
	quad.C *= dt
	if quad.IsTerminal() {
		return
	}
	quad.Hux.Scale(dt, quad.Hux)
	quad.Huu.Scale(dt, quad.Huu)
	quad.Gu.ScaleVec(dt, quad.Gu)
}

func mulAddVec(A, B ocp.Matrix, x, u ocp.Vector) ocp.Vector {
	out := mat.NewVecDense(x.Len(), nil)
	out.MulVec(A, x)
	tmp := mat.NewVecDense(x.Len(), nil)
	tmp.MulVec(B, u)
	out.AddVec(out, tmp)
	return out
}

func sumSquaredNegativePart(g ocp.Vector) float64 {
	sum := 0.0
	for i := 0; i < g.Len(); i++ {
		v := g.AtVec(i)
		if v < 0 {
			sum += v * v
		}
	}
	return sum
}

func rows(m ocp.Matrix) int { r, _ := m.Dims(); return r }
func cols(m ocp.Matrix) int { _, c := m.Dims(); return c }
func dense(m mat.Matrix) ocp.Matrix {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(m)
	return out
}
