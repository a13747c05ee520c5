package sqp

import (
	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/assemble"
	"shooting-mpc-core/ocp"
)

// buildController turns the final iterate into a Controller. With feedback
// disabled it is a pure feedforward replay of the optimized input; otherwise
// it reconstructs the affine feedback law implied by the last QP's Riccati
// gains, folding the null-space projection back in wherever a node's input
// was reparameterized.
func (s *Solver) buildController(grid ocp.TimeGrid, x, u ocp.Trajectory, asm assemble.Result) (ocp.Controller, error) {
	sampleTimes := make([]float64, len(u))
	copy(sampleTimes, grid[:len(u)])

	if !s.cfg.UseFeedbackPolicy || len(asm.Dynamics) == 0 {
		return &ocp.FeedforwardController{Time: sampleTimes, Input: u}, nil
	}

	gains, err := s.backend.RiccatiFeedback(asm.Dynamics, asm.Cost)
	if err != nil {
		return nil, err
	}

	effective := make([]ocp.Matrix, len(gains))
	feedforward := make(ocp.Trajectory, len(gains))

	for i, k := range gains {
		c := asm.Constraints[i]
		keff := k
		if c.Projected {
			dfduK := mat.NewDense(rows(c.Dfdu), cols(k), nil)
			dfduK.Mul(c.Dfdu, k)
			combined := mat.NewDense(rows(c.Dfdx), cols(c.Dfdx), nil)
			combined.Add(c.Dfdx, dfduK)
			keff = combined
		}
		effective[i] = keff

		correction := mat.NewVecDense(u[i].Len(), nil)
		correction.MulVec(keff, x[i])
		uff := mat.NewVecDense(u[i].Len(), nil)
		uff.SubVec(u[i], correction)
		feedforward[i] = uff
	}

	return &ocp.LinearController{Time: sampleTimes, Uff: feedforward, Gain: effective}, nil
}

func rows(m ocp.Matrix) int { r, _ := m.Dims(); return r }
func cols(m ocp.Matrix) int { _, c := m.Dims(); return c }
