package ocp

import "testing"

func TestBuildTimeGridNoEvents(t *testing.T) {
	grid := BuildTimeGrid(0, 1, 0.25, nil, 1e-4)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	if len(grid) != len(want) {
		t.Fatalf("got %d samples, want %d: %v", len(grid), len(want), grid)
	}
	for i, v := range want {
		if diff := grid[i] - v; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("grid[%d] = %g, want %g", i, grid[i], v)
		}
	}
}

func TestBuildTimeGridDuplicatesInteriorEvents(t *testing.T) {
	eps := 1e-3
	grid := BuildTimeGrid(0, 1, 0.1, []float64{0.25, 0.5}, eps)

	count := func(target float64) int {
		n := 0
		for _, g := range grid {
			if g == target {
				n++
			}
		}
		return n
	}

	if count(0.25) != 1 || count(0.25+eps) != 1 {
		t.Errorf("expected event 0.25 duplicated as (0.25, 0.25+eps), grid=%v", grid)
	}
	if count(0.5) != 1 || count(0.5+eps) != 1 {
		t.Errorf("expected event 0.5 duplicated as (0.5, 0.5+eps), grid=%v", grid)
	}
}

func TestBuildTimeGridNeverDuplicatesAtBoundaries(t *testing.T) {
	grid := BuildTimeGrid(0, 1, 0.2, []float64{0, 1}, 1e-3)
	if grid[0] != 0 {
		t.Errorf("first sample = %g, want 0", grid[0])
	}
	if grid[len(grid)-1] != 1 {
		t.Errorf("last sample = %g, want 1", grid[len(grid)-1])
	}
	n0, n1 := 0, 0
	for _, g := range grid {
		if g == 0 {
			n0++
		}
		if g == 1 {
			n1++
		}
	}
	if n0 != 1 || n1 != 1 {
		t.Errorf("boundary times must not be duplicated, grid=%v", grid)
	}
}

func TestBuildTimeGridStrictlyIncreasing(t *testing.T) {
	grid := BuildTimeGrid(0, 1, 0.1, []float64{0.25, 0.55}, 1e-3)
	for i := 1; i < len(grid); i++ {
		if grid[i] <= grid[i-1] {
			t.Fatalf("grid not strictly increasing at index %d: %v", i, grid)
		}
	}
}
