package integrate

// butcherTableau is an explicit Runge-Kutta tableau: c, a (strictly lower
// triangular) and b as in the classical (c, A, b) notation.
type butcherTableau struct {
	stages int
	a      [][]float64
	b      []float64
	c      []float64
}

var eulerTableau = butcherTableau{
	stages: 1,
	a:      [][]float64{{0}},
	b:      []float64{1},
	c:      []float64{0},
}

// rk2Tableau is Heun's method (explicit trapezoidal RK2).
var rk2Tableau = butcherTableau{
	stages: 2,
	a: [][]float64{
		{0, 0},
		{1, 0},
	},
	b: []float64{0.5, 0.5},
	c: []float64{0, 1},
}

// rk4Tableau is the classical four-stage Runge-Kutta method.
var rk4Tableau = butcherTableau{
	stages: 4,
	a: [][]float64{
		{0, 0, 0, 0},
		{0.5, 0, 0, 0},
		{0, 0.5, 0, 0},
		{0, 0, 1, 0},
	},
	b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
	c: []float64{0, 0.5, 0.5, 1},
}
