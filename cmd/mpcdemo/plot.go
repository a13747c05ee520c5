package main

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// trajectoryLog accumulates the closed-loop sample history for the run's
// end-of-simulation plot.
type trajectoryLog struct {
	t   []float64
	pos []float64
	vel []float64
	u   []float64
}

func (l *trajectoryLog) append(t, pos, vel, u float64) {
	l.t = append(l.t, t)
	l.pos = append(l.pos, pos)
	l.vel = append(l.vel, vel)
	l.u = append(l.u, u)
}

// savePlot renders position, velocity and the target reference against time
// to a single PNG so a run can be inspected without re-parsing the log file.
func savePlot(log *trajectoryLog, target float64, path string) error {
	p := plot.New()
	p.Title.Text = "mpcdemo closed-loop trajectory"
	p.X.Label.Text = "time (s)"
	p.Legend.Top = true

	targetSeries := xy([]float64{log.t[0], log.t[len(log.t)-1]}, []float64{target, target})

	if err := plotutil.AddLines(p,
		"position", xy(log.t, log.pos),
		"velocity", xy(log.t, log.vel),
		"target", targetSeries,
	); err != nil {
		return fmt.Errorf("plot: add series: %w", err)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("plot: save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func xy(t, v []float64) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i := range t {
		pts[i].X = t[i]
		pts[i].Y = v[i]
	}
	return pts
}
