package transcribe

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"shooting-mpc-core/ocp"
)

func TestIdentityProjectionWhenNoConstraint(t *testing.T) {
	block, err := projectEquality(nil, nil, nil, 3, 2)
	if err != nil {
		t.Fatalf("projectEquality: %v", err)
	}
	if !block.Projected {
		t.Fatal("expected Projected = true")
	}
	if r, c := block.Dfdu.Dims(); r != 2 || c != 2 {
		t.Fatalf("Dfdu dims = %dx%d, want 2x2", r, c)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if block.Dfdu.At(i, j) != want {
				t.Errorf("Dfdu[%d][%d] = %g, want %g", i, j, block.Dfdu.At(i, j), want)
			}
		}
	}
	if block.F.Len() != 2 || block.F.AtVec(0) != 0 || block.F.AtVec(1) != 0 {
		t.Errorf("F = %v, want zero vector", block.F)
	}
	if r, c := block.Dfdx.Dims(); r != 2 || c != 3 {
		t.Fatalf("Dfdx dims = %dx%d, want 2x3", r, c)
	}
}

// TestProjectEqualityReconstructionSatisfiesConstraint checks the defining
// property of the null-space projection: for the affine map it returns,
// u = F + Dfdx*x + Dfdu*uTilde satisfies dfdx*x + dfdu*u + f = 0 for every x
// and every uTilde, since Dfdu spans the constraint's null space.
func TestProjectEqualityReconstructionSatisfiesConstraint(t *testing.T) {
	dfdx := mat.NewDense(1, 2, []float64{1, 0})
	dfdu := mat.NewDense(1, 2, []float64{1, 0})
	f := mat.NewVecDense(1, []float64{0})

	block, err := projectEquality(f, dfdx, dfdu, 2, 2)
	if err != nil {
		t.Fatalf("projectEquality: %v", err)
	}
	if !block.Projected {
		t.Fatal("expected Projected = true")
	}

	xs := []ocp.Vector{
		mat.NewVecDense(2, []float64{1, 2}),
		mat.NewVecDense(2, []float64{-3, 5}),
	}
	uTildes := []ocp.Vector{
		mat.NewVecDense(1, []float64{0}),
		mat.NewVecDense(1, []float64{7}),
		mat.NewVecDense(1, []float64{-4}),
	}

	for _, x := range xs {
		for _, w := range uTildes {
			u := mat.NewVecDense(2, nil)
			u.MulVec(block.Dfdx, x)
			tmp := mat.NewVecDense(2, nil)
			tmp.MulVec(block.Dfdu, w)
			u.AddVec(u, tmp)
			u.AddVec(u, block.F)

			residual := mat.NewVecDense(1, nil)
			residual.MulVec(dfdx, x)
			tmp2 := mat.NewVecDense(1, nil)
			tmp2.MulVec(dfdu, u)
			residual.AddVec(residual, tmp2)
			residual.AddVec(residual, f)

			if got := residual.AtVec(0); got < -1e-8 || got > 1e-8 {
				t.Errorf("constraint residual = %g, want ~0 (x=%v, uTilde=%v)", got, x.RawVector().Data, w.RawVector().Data)
			}
		}
	}
}

func TestProjectEqualityRejectsMoreRowsThanInputs(t *testing.T) {
	dfdx := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	dfdu := mat.NewDense(2, 1, []float64{1, 1})
	f := mat.NewVecDense(2, []float64{0, 0})

	_, err := projectEquality(f, dfdx, dfdu, 2, 1)
	if err == nil {
		t.Fatal("expected rank-deficiency error when equality rows exceed input dimension")
	}
}

func TestProjectDynamicsAppliesAffineMap(t *testing.T) {
	dyn := ocp.DynamicsBlock{
		A:    mat.NewDense(1, 1, []float64{2}),
		B:    mat.NewDense(1, 1, []float64{3}),
		Bias: mat.NewVecDense(1, []float64{1}),
	}
	block := ocp.ConstraintBlock{
		Projected: true,
		F:         mat.NewVecDense(1, []float64{4}),
		Dfdx:      mat.NewDense(1, 1, []float64{5}),
		Dfdu:      mat.NewDense(1, 1, []float64{6}),
	}
	projectDynamics(&dyn, block)

	// A' = A + B*Dfdx = 2 + 3*5 = 17
	if got := dyn.A.At(0, 0); got != 17 {
		t.Errorf("A' = %g, want 17", got)
	}
	// B' = B*Dfdu = 3*6 = 18
	if got := dyn.B.At(0, 0); got != 18 {
		t.Errorf("B' = %g, want 18", got)
	}
	// Bias' = Bias + B*F = 1 + 3*4 = 13
	if got := dyn.Bias.AtVec(0); got != 13 {
		t.Errorf("Bias' = %g, want 13", got)
	}
}

func TestProjectCostIsNoOpUnderIdentityProjection(t *testing.T) {
	quad := ocp.CostBlock{
		Hxx: mat.NewDense(1, 1, []float64{2}),
		Hux: mat.NewDense(1, 1, []float64{3}),
		Huu: mat.NewDense(1, 1, []float64{4}),
		Gx:  mat.NewVecDense(1, []float64{5}),
		Gu:  mat.NewVecDense(1, []float64{6}),
	}
	block := identityProjection(1, 1)
	projectCost(&quad, block)

	if quad.Hxx.At(0, 0) != 2 || quad.Hux.At(0, 0) != 3 || quad.Huu.At(0, 0) != 4 {
		t.Errorf("identity projection changed H blocks: %+v", quad)
	}
	if quad.Gx.AtVec(0) != 5 || quad.Gu.AtVec(0) != 6 {
		t.Errorf("identity projection changed g blocks: %+v", quad)
	}
}
