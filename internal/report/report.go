// Package report renders an HTML chart of the optimiser's convergence:
// the best fitness observed at each generation that produced an
// improvement.
package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Sample is one improvement event.
type Sample struct {
	Generation int
	Fitness    float64
}

// WriteConvergence writes a line chart of fitness over generations to an
// HTML file.
func WriteConvergence(path string, samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Nesting convergence",
			Subtitle: "Best fitness per improving generation (lower is better)",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Generation"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Fitness"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside"},
			opts.DataZoom{Type: "slider"},
		),
	)

	xAxis := make([]string, len(samples))
	data := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xAxis[i] = fmt.Sprintf("%d", s.Generation)
		data[i] = opts.LineData{Value: s.Fitness}
	}

	line.SetXAxis(xAxis).AddSeries("Best fitness", data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
	)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return line.Render(f)
}
