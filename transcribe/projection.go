package transcribe

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/ocp"
)

// ErrRankDeficientProjection is returned when the state-input equality
// jacobian in the input does not have full row rank, so no null-space
// parameterization of the input exists. Per the design note this is a fatal
// error for the current solve rather than a degraded fallback.
var ErrRankDeficientProjection = errors.New("transcribe: state-input equality jacobian is rank deficient")

// projectEquality reparameterizes u onto the null space of
// dfdx*x + dfdu*u + f = 0, returning the affine map
// u = f' + dfdx'*x + dfdu'*uTilde with uTilde of reduced dimension
// nu - rank(dfdu). If there is no equality constraint (dfdu has zero rows),
// the identity map is returned unchanged.
func projectEquality(f ocp.Vector, dfdx, dfdu ocp.Matrix, nx, nu int) (ocp.ConstraintBlock, error) {
	if f == nil || f.Len() == 0 {
		return identityProjection(nx, nu), nil
	}

	meq, nuCheck := dfdu.Dims()
	if nuCheck != nu {
		return ocp.ConstraintBlock{}, fmt.Errorf("transcribe: constraint input jacobian has %d columns, want %d", nuCheck, nu)
	}
	if meq > nu {
		return ocp.ConstraintBlock{}, fmt.Errorf("%w: %d equality rows exceed %d inputs", ErrRankDeficientProjection, meq, nu)
	}

	cuT := mat.DenseCopyOf(dfdu.T())
	var qr mat.QR
	qr.Factorize(cuT)

	q := mat.NewDense(nu, nu, nil)
	qr.QTo(q)
	r := mat.NewDense(meq, meq, nil)
	qr.RTo(r)

	q1 := mat.DenseCopyOf(q.Slice(0, nu, 0, meq))
	q2 := mat.DenseCopyOf(q.Slice(0, nu, meq, nu))
	r1 := mat.DenseCopyOf(r.Slice(0, meq, 0, meq))

	for k := 0; k < meq; k++ {
		if abs(r1.At(k, k)) < 1e-10 {
			return ocp.ConstraintBlock{}, fmt.Errorf("%w: near-zero pivot at row %d", ErrRankDeficientProjection, k)
		}
	}

	r1T := mat.DenseCopyOf(r1.T())

	rhs := mat.NewDense(meq, nx+1, nil)
	rhs.Slice(0, meq, 0, nx).(*mat.Dense).Copy(dfdx)
	for i := 0; i < meq; i++ {
		rhs.Set(i, nx, f.AtVec(i))
	}

	y := mat.NewDense(meq, nx+1, nil)
	if err := y.Solve(r1T, rhs); err != nil {
		return ocp.ConstraintBlock{}, fmt.Errorf("%w: %v", ErrRankDeficientProjection, err)
	}

	pinvM := mat.NewDense(nu, nx+1, nil)
	pinvM.Mul(q1, y)

	dfdxOut := mat.DenseCopyOf(pinvM.Slice(0, nu, 0, nx))
	dfdxOut.Scale(-1, dfdxOut)

	fOut := mat.NewVecDense(nu, nil)
	for i := 0; i < nu; i++ {
		fOut.SetVec(i, -pinvM.At(i, nx))
	}

	return ocp.ConstraintBlock{
		Projected: true,
		F:         fOut,
		Dfdx:      dfdxOut,
		Dfdu:      q2,
	}, nil
}

// projectDynamics rewrites the node's discretized dynamics into the reduced
// input space given u = F + Dfdx*x + Dfdu*uTilde:
//
//	A' = A + B*Dfdx
//	B' = B*Dfdu
//	Bias' = Bias + B*F
func projectDynamics(dyn *ocp.DynamicsBlock, block ocp.ConstraintBlock) {
	nx, _ := dyn.A.Dims()

	bDfdx := mat.NewDense(nx, nx, nil)
	bDfdx.Mul(dyn.B, block.Dfdx)
	aNew := mat.NewDense(nx, nx, nil)
	aNew.Add(dyn.A, bDfdx)

	_, nuTilde := block.Dfdu.Dims()
	bNew := mat.NewDense(nx, nuTilde, nil)
	bNew.Mul(dyn.B, block.Dfdu)

	bF := mat.NewVecDense(nx, nil)
	bF.MulVec(dyn.B, block.F)
	biasNew := mat.NewVecDense(nx, nil)
	biasNew.AddVec(dyn.Bias, bF)

	dyn.A = aNew
	dyn.B = bNew
	dyn.Bias = biasNew
}

func identityProjection(nx, nu int) ocp.ConstraintBlock {
	ident := mat.NewDense(nu, nu, nil)
	for i := 0; i < nu; i++ {
		ident.Set(i, i, 1)
	}
	return ocp.ConstraintBlock{
		Projected: true,
		F:         mat.NewVecDense(nu, nil),
		Dfdx:      mat.NewDense(nu, nx, nil),
		Dfdu:      ident,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
