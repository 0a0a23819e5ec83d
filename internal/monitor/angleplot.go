package monitor

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kinetic-data/posture.report/internal/overlay"
	"github.com/kinetic-data/posture.report/internal/pose"
)

func plotColor(c overlay.Color) color.Color {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// renderAnglePNG draws the leg-angle trace with the session's band edges
// and returns the encoded PNG.
func renderAnglePNG(rep *report) ([]byte, error) {
	series := rep.Series
	if len(series.Seq) == 0 {
		return nil, fmt.Errorf("session %d has no frames to plot", rep.Session.ID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Leg angle: %s", rep.Session.Name)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Angle (deg)"

	pts := make(plotter.XYs, 0, len(series.Seq))
	for i := range series.Seq {
		pts = append(pts, plotter.XY{X: float64(series.Seq[i]), Y: series.LegAngles[i]})
	}

	angleLine, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build angle line: %w", err)
	}
	angleLine.Color = color.RGBA{R: 0x54, G: 0x70, B: 0xc6, A: 255}
	angleLine.Width = vg.Points(1.5)
	p.Add(angleLine)
	p.Legend.Add("angle", angleLine)

	first := float64(series.Seq[0])
	last := float64(series.Seq[len(series.Seq)-1])
	for _, edge := range []struct {
		name  string
		value float64
		color overlay.Color
	}{
		{"band low", rep.Session.TargetAngle * pose.LegBandLow, overlay.ColorAbove},
		{"band high", rep.Session.TargetAngle * pose.LegBandHigh, overlay.ColorBelow},
	} {
		line, err := plotter.NewLine(plotter.XYs{
			{X: first, Y: edge.value},
			{X: last, Y: edge.value},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build %s line: %w", edge.name, err)
		}
		line.Color = plotColor(edge.color)
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(line)
		p.Legend.Add(edge.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to encode angle plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode angle plot: %w", err)
	}
	return buf.Bytes(), nil
}
