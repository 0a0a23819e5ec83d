package monitor

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kinetic-data/posture.report/internal/db"
	"github.com/kinetic-data/posture.report/internal/overlay"
	"github.com/kinetic-data/posture.report/internal/pose"
)

// codeColor returns the overlay hex for a code, or the neutral gray for
// codes that draw nothing.
func codeColor(code pose.RegionCode) string {
	if col, ok := overlay.ColorFor(code); ok {
		return col.Hex()
	}
	return overlay.ColorNeutral.Hex()
}

func sessionSubtitle(sess *db.Session, frames int) string {
	started := time.Unix(int64(sess.StartedAtUnix), 0).UTC().Format(time.RFC3339)
	return fmt.Sprintf("session=%s started=%s frames=%d target=%g tolerance=%g",
		sess.UUID, started, frames, sess.TargetAngle, sess.Tolerance)
}

// renderHTML writes the three-chart report page: the per-frame code
// timeline, a pie per region, and the leg-angle line with its band edges.
func renderHTML(w io.Writer, rep *report) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Posture report: %s", rep.Session.Name)
	page.AddCharts(
		codeTimelineChart(rep.Session, rep.Series),
		regionPieChart("Arms", rep.Counts.Arms),
		regionPieChart("Leg", rep.Counts.Leg),
		angleLineChart(rep.Session, rep.Series),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report page: %w", err)
	}
	return nil
}

// codeTimelineChart plots one point per frame and region, arms on the
// upper row and leg on the lower, one series per code so every point
// carries its overlay color.
func codeTimelineChart(sess *db.Session, series *db.FrameCodeSeries) *charts.Scatter {
	const (
		legRow  = 0
		armsRow = 1
	)

	perCode := make(map[pose.RegionCode][]opts.ScatterData)
	for i := range series.Seq {
		arms := pose.RegionCode(series.ArmsCodes[i])
		leg := pose.RegionCode(series.LegCodes[i])
		perCode[arms] = append(perCode[arms], opts.ScatterData{Value: []interface{}{series.Seq[i], armsRow}})
		perCode[leg] = append(perCode[leg], opts.ScatterData{Value: []interface{}{series.Seq[i], legRow}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "300px"}),
		charts.WithTitleOpts(opts.Title{Title: "Code timeline (arms top, leg bottom)", Subtitle: sessionSubtitle(sess, len(series.Seq))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 2, Show: opts.Bool(false)}),
	)

	for _, code := range pose.Codes() {
		data, ok := perCode[code]
		if !ok {
			continue
		}
		scatter.AddSeries(string(code), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: codeColor(code)}),
		)
	}
	return scatter
}

// regionPieChart shows how a region's frames distributed over codes.
func regionPieChart(region string, counts map[string]int) *charts.Pie {
	data := make([]opts.PieData, 0, len(counts))
	for _, code := range pose.Codes() {
		n, ok := counts[string(code)]
		if !ok {
			continue
		}
		data = append(data, opts.PieData{
			Name:      string(code),
			Value:     n,
			ItemStyle: &opts.ItemStyle{Color: codeColor(code)},
		})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: region + " codes"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries(region, data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
	)
	return pie
}

// angleLineChart plots the measured leg angle per frame with the session's
// band edges. The band edges mark where the directional checks hand over,
// not an accepted zone: per the deployed rule an angle between them grades
// incorrect.
func angleLineChart(sess *db.Session, series *db.FrameCodeSeries) *charts.Line {
	xs := make([]string, len(series.Seq))
	angles := make([]opts.LineData, len(series.Seq))
	lows := make([]opts.LineData, len(series.Seq))
	highs := make([]opts.LineData, len(series.Seq))

	low := sess.TargetAngle * pose.LegBandLow
	high := sess.TargetAngle * pose.LegBandHigh
	for i := range series.Seq {
		xs[i] = strconv.FormatInt(series.Seq[i], 10)
		angles[i] = opts.LineData{Value: series.LegAngles[i]}
		lows[i] = opts.LineData{Value: low}
		highs[i] = opts.LineData{Value: high}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Leg angle", Subtitle: fmt.Sprintf("target=%g band=[%g, %g]", sess.TargetAngle, low, high)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Angle (deg)"}),
	)
	line.SetXAxis(xs).
		AddSeries("angle", angles,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#5470c6"}),
		).
		AddSeries("band low", lows,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: codeColor(pose.CodeAbove)}),
		).
		AddSeries("band high", highs,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: codeColor(pose.CodeBelow)}),
		)
	return line
}
