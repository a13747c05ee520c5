package ocp

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Controller maps a time and state to a control input. It is either a
// feedforward controller (ignores x) or an affine feedback controller
// (u_ff(t) + K(t)*x).
type Controller interface {
	// Sample returns the control input at time t given state x.
	Sample(t float64, x Vector) Vector
}

// FeedforwardController is piecewise-linear in time over the u trajectory.
type FeedforwardController struct {
	Time  []float64
	Input Trajectory
}

// Sample implements Controller.
func (c *FeedforwardController) Sample(t float64, _ Vector) Vector {
	return interpolateVector(c.Time, c.Input, t)
}

// LinearController is an affine feedback controller u = u_ff(t) + K(t)*x.
type LinearController struct {
	Time []float64
	Uff  Trajectory
	Gain []Matrix
}

// Sample implements Controller.
func (c *LinearController) Sample(t float64, x Vector) Vector {
	uff := interpolateVector(c.Time, c.Uff, t)
	k := interpolateMatrix(c.Time, c.Gain, t)
	if k == nil || x == nil {
		return uff
	}
	out := mat.NewVecDense(uff.Len(), nil)
	out.MulVec(k, x)
	out.AddVec(out, uff)
	return out
}

// findInterval returns the index i such that time[i] <= t < time[i+1], or the
// closest boundary index if t is outside [time[0], time[last]].
func findInterval(time []float64, t float64) int {
	if len(time) == 0 {
		return 0
	}
	i := sort.SearchFloat64s(time, t)
	switch {
	case i <= 0:
		return 0
	case i >= len(time):
		return len(time) - 1
	case time[i] == t:
		return i
	default:
		return i - 1
	}
}

func interpolateVector(time []float64, v Trajectory, t float64) Vector {
	if len(time) == 0 || len(v) == 0 {
		return nil
	}
	if len(time) == 1 || t <= time[0] {
		return mat.VecDenseCopyOf(v[0])
	}
	if t >= time[len(time)-1] {
		return mat.VecDenseCopyOf(v[len(v)-1])
	}
	i := findInterval(time, t)
	if i >= len(v)-1 {
		return mat.VecDenseCopyOf(v[len(v)-1])
	}
	tau := (t - time[i]) / (time[i+1] - time[i])
	out := mat.NewVecDense(v[i].Len(), nil)
	out.AddScaledVec(v[i], tau, scaledDiff(v[i+1], v[i]))
	return out
}

func scaledDiff(a, b Vector) Vector {
	out := mat.NewVecDense(a.Len(), nil)
	out.SubVec(a, b)
	return out
}

func interpolateMatrix(time []float64, k []Matrix, t float64) Matrix {
	if len(time) == 0 || len(k) == 0 {
		return nil
	}
	if len(time) == 1 || t <= time[0] {
		return k[0]
	}
	if t >= time[len(time)-1] {
		return k[len(k)-1]
	}
	i := findInterval(time, t)
	if i >= len(k) {
		return k[len(k)-1]
	}
	return k[i]
}
