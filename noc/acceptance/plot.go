package acceptance

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotLatency writes a histogram of the end-to-end latencies. The image
// format follows the file extension.
func (t *Test) PlotLatency(path string) error {
	if len(t.latencies) == 0 {
		return errors.New("no packet received")
	}

	p := plot.New()
	p.Title.Text = "End-to-end latency"
	p.X.Label.Text = "Cycles"
	p.Y.Label.Text = "Packets"

	h, err := plotter.NewHist(plotter.Values(t.latencies), 20)
	if err != nil {
		return errors.Wrap(err, "building histogram")
	}

	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}

	return nil
}
