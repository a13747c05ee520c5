package qp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/ocp"
)

// RiccatiSolver is the reference Backend: a dense backward Riccati
// recursion followed by a forward sweep. It solves the affine-LQ subproblem
// exactly whenever every stage's Huu is invertible, which holds for the
// projected-input QPs the node transcriber produces and for the
// unconstrained case. It refuses any problem carrying inequality
// constraints, since bounding a general QP is out of scope here.
type RiccatiSolver struct {
	size ocp.OcpSize
}

// NewRiccatiSolver returns an unsized solver; call Resize before Solve.
func NewRiccatiSolver() *RiccatiSolver {
	return &RiccatiSolver{}
}

func (s *RiccatiSolver) Resize(size ocp.OcpSize) error {
	if size.N < 0 || len(size.NumStates) == 0 {
		return fmt.Errorf("%w: invalid problem size %+v", ErrQPSolveFailure, size)
	}
	for _, nx := range size.NumStates {
		if nx <= 0 {
			return fmt.Errorf("%w: invalid problem size %+v", ErrQPSolveFailure, size)
		}
	}
	s.size = size
	return nil
}

func (s *RiccatiSolver) Solve(deltaX0 ocp.Vector, dynamics []ocp.DynamicsBlock, cost []ocp.CostBlock, ineq []ocp.InequalityBlock) ([]ocp.Vector, []ocp.Vector, error) {
	if err := checkShapes(dynamics, cost); err != nil {
		return nil, nil, err
	}
	if hasActiveRows(ineq) {
		return nil, nil, fmt.Errorf("%w: hard inequality constraints are not supported by the reference back-end", ErrQPSolveFailure)
	}

	gains, err := s.backwardPass(dynamics, cost)
	if err != nil {
		return nil, nil, err
	}
	return forwardPass(deltaX0, dynamics, gains)
}

func (s *RiccatiSolver) RiccatiFeedback(dynamics []ocp.DynamicsBlock, cost []ocp.CostBlock) ([]ocp.Matrix, error) {
	if err := checkShapes(dynamics, cost); err != nil {
		return nil, err
	}
	gains, err := s.backwardPass(dynamics, cost)
	if err != nil {
		return nil, err
	}
	K := make([]ocp.Matrix, len(gains))
	for i, g := range gains {
		K[i] = g.K
	}
	return K, nil
}

// riccatiGain is one stage's feedback law du_i = K_i*dx_i + k_i.
type riccatiGain struct {
	K ocp.Matrix
	k ocp.Vector
}

// backwardPass runs the Riccati recursion from the terminal node (index N,
// cost[N]) back to node 0, returning the feedback law for stages 0..N-1.
func (s *RiccatiSolver) backwardPass(dynamics []ocp.DynamicsBlock, cost []ocp.CostBlock) ([]riccatiGain, error) {
	n := len(dynamics)
	terminal := cost[n]

	P := mat.DenseCopyOf(terminal.Hxx)
	p := mat.VecDenseCopyOf(terminal.Gx)

	gains := make([]riccatiGain, n)

	for i := n - 1; i >= 0; i-- {
		A, B, b := dynamics[i].A, dynamics[i].B, dynamics[i].Bias
		c := cost[i]
		nx, _ := A.Dims()
		_, nu := B.Dims()

		pb := mat.NewVecDense(nx, nil)
		pb.MulVec(P, b)
		pb.AddVec(pb, p)

		// Suu = Huu + B'*P*B
		pB := mat.NewDense(nx, nu, nil)
		pB.Mul(P, B)
		btPB := mat.NewDense(nu, nu, nil)
		btPB.Mul(B.T(), pB)
		Suu := mat.NewDense(nu, nu, nil)
		Suu.Add(c.Huu, btPB)

		// Sux = Hux + B'*P*A
		pA := mat.NewDense(nx, nx, nil)
		pA.Mul(P, A)
		btPA := mat.NewDense(nu, nx, nil)
		btPA.Mul(B.T(), pA)
		Sux := mat.NewDense(nu, nx, nil)
		Sux.Add(c.Hux, btPA)

		// Sxx = Hxx + A'*P*A
		atPA := mat.NewDense(nx, nx, nil)
		atPA.Mul(A.T(), pA)
		Sxx := mat.NewDense(nx, nx, nil)
		Sxx.Add(c.Hxx, atPA)

		// su = Gu + B'*(p + P*b)
		su := mat.NewVecDense(nu, nil)
		su.MulVec(B.T(), pb)
		su.AddVec(su, c.Gu)

		// sx = Gx + A'*(p + P*b)
		sx := mat.NewVecDense(nx, nil)
		sx.MulVec(A.T(), pb)
		sx.AddVec(sx, c.Gx)

		SuuInv := mat.NewDense(nu, nu, nil)
		if err := SuuInv.Inverse(Suu); err != nil {
			return nil, fmt.Errorf("%w: stage %d Suu is singular: %v", ErrQPSolveFailure, i, err)
		}

		K := mat.NewDense(nu, nx, nil)
		K.Mul(SuuInv, Sux)
		K.Scale(-1, K)

		k := mat.NewVecDense(nu, nil)
		k.MulVec(SuuInv, su)
		k.ScaleVec(-1, k)

		gains[i] = riccatiGain{K: K, k: k}

		// P_i = Sxx - Sux' * Suu^-1 * Sux ; p_i = sx - Sux' * Suu^-1 * su
		suuInvSux := mat.NewDense(nu, nx, nil)
		suuInvSux.Mul(SuuInv, Sux)
		suxT_suuInvSux := mat.NewDense(nx, nx, nil)
		suxT_suuInvSux.Mul(Sux.T(), suuInvSux)
		Pi := mat.NewDense(nx, nx, nil)
		Pi.Sub(Sxx, suxT_suuInvSux)
		P = Pi

		suuInvSu := mat.NewVecDense(nu, nil)
		suuInvSu.MulVec(SuuInv, su)
		suxTsuuInvSu := mat.NewVecDense(nx, nil)
		suxTsuuInvSu.MulVec(Sux.T(), suuInvSu)
		pi := mat.NewVecDense(nx, nil)
		pi.SubVec(sx, suxTsuuInvSu)
		p = pi
	}

	return gains, nil
}

func forwardPass(deltaX0 ocp.Vector, dynamics []ocp.DynamicsBlock, gains []riccatiGain) ([]ocp.Vector, []ocp.Vector, error) {
	n := len(dynamics)
	deltaX := make([]ocp.Vector, n+1)
	deltaU := make([]ocp.Vector, n)

	deltaX[0] = mat.VecDenseCopyOf(deltaX0)
	for i := 0; i < n; i++ {
		K, k := gains[i].K, gains[i].k
		du := mat.NewVecDense(k.Len(), nil)
		du.MulVec(K, deltaX[i])
		du.AddVec(du, k)
		deltaU[i] = du

		A, B, b := dynamics[i].A, dynamics[i].B, dynamics[i].Bias
		dxNext := mat.NewVecDense(deltaX[i].Len(), nil)
		dxNext.MulVec(A, deltaX[i])
		tmp := mat.NewVecDense(deltaX[i].Len(), nil)
		tmp.MulVec(B, du)
		dxNext.AddVec(dxNext, tmp)
		dxNext.AddVec(dxNext, b)
		deltaX[i+1] = dxNext
	}

	return deltaX, deltaU, nil
}

func checkShapes(dynamics []ocp.DynamicsBlock, cost []ocp.CostBlock) error {
	if len(cost) != len(dynamics)+1 {
		return fmt.Errorf("%w: %d cost blocks for %d dynamics blocks, want %d", ErrQPSolveFailure, len(cost), len(dynamics), len(dynamics)+1)
	}
	return nil
}

func hasActiveRows(ineq []ocp.InequalityBlock) bool {
	for _, b := range ineq {
		if b.G != nil && b.G.Len() > 0 {
			return true
		}
	}
	return false
}
