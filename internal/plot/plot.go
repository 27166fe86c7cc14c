// Package plot renders trace plots and posterior density histograms for
// retained draws. One PNG per monitored parameter.
package plot

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Trace writes a trace plot for one parameter: retained value against
// retention index, one line per chain. Diverging lines across chains are
// the visual signal of non-convergence.
func Trace(param string, chains [][]float64, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trace of %s", param)
	p.X.Label.Text = "retained draw"
	p.Y.Label.Text = param

	for i, chain := range chains {
		pts := make(plotter.XYs, len(chain))
		for j, v := range chain {
			pts[j].X = float64(j + 1)
			pts[j].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build trace line for %s: %w", param, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("chain %d", i+1), line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save trace plot for %s: %w", param, err)
	}
	return nil
}

// Density writes a normalized histogram of the flat posterior draws for one
// parameter.
func Density(param string, values []float64, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Posterior of %s", param)
	p.X.Label.Text = param
	p.Y.Label.Text = "density"

	h, err := plotter.NewHist(plotter.Values(values), 50)
	if err != nil {
		return fmt.Errorf("failed to build histogram for %s: %w", param, err)
	}
	h.Normalize(1)
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save density plot for %s: %w", param, err)
	}
	return nil
}
