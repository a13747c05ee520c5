package ocp

import "sort"

// BuildTimeGrid produces a shooting grid from t0 to tf honoring event times.
// Every interior sample is spaced approximately dt apart; every event in
// (t0, tf) appears twice in the returned grid, once as the closing time of
// one interval and once as the opening time of the next, separated by eps.
// A nominal sample within eps of an event snaps to the event instead of
// creating a near-duplicate. Events at t0 or tf are not duplicated.
func BuildTimeGrid(t0, tf, dt float64, eventTimes []float64, eps float64) TimeGrid {
	events := relevantEvents(t0, tf, eventTimes, eps)

	grid := make(TimeGrid, 0, int((tf-t0)/dt)+2*len(events)+2)
	grid = append(grid, t0)

	nextEvent := 0
	t := t0
	for t < tf {
		next := t + dt
		// Snap to the next event if it falls within eps, or if it lies
		// strictly between the current sample and the naive next sample.
		for nextEvent < len(events) && events[nextEvent] <= next+eps {
			e := events[nextEvent]
			if e-t > eps { // don't duplicate a sample we just emitted
				grid = append(grid, e)
			}
			grid = append(grid, e+eps)
			t = e + eps
			next = t + dt
			nextEvent++
		}
		if next >= tf-eps {
			break
		}
		grid = append(grid, next)
		t = next
	}
	grid = append(grid, tf)

	return dedupeAdjacent(grid, eps)
}

// relevantEvents returns the sorted events strictly inside (t0, tf), keeping
// only points not within eps of the boundaries.
func relevantEvents(t0, tf float64, eventTimes []float64, eps float64) []float64 {
	sorted := append([]float64(nil), eventTimes...)
	sort.Float64s(sorted)
	out := make([]float64, 0, len(sorted))
	for _, e := range sorted {
		if e-t0 > eps && tf-e > eps {
			out = append(out, e)
		}
	}
	return out
}

// dedupeAdjacent removes an accidental zero-length interval that can occur
// when the loop's final `next` sample coincides with tf within eps.
func dedupeAdjacent(grid TimeGrid, eps float64) TimeGrid {
	if len(grid) < 2 {
		return grid
	}
	out := grid[:1]
	for i := 1; i < len(grid); i++ {
		if grid[i]-out[len(out)-1] <= eps/2 {
			out[len(out)-1] = grid[i]
			continue
		}
		out = append(out, grid[i])
	}
	return out
}
