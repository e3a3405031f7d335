package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/progress.report/internal/measure"
)

const (
	colorLength    = "#2e7d32"
	colorGirth     = "#1565c0"
	colorProjected = "#ef6c00"
	colorBand      = "#ffb74d"
)

// HTMLOptions tunes RenderHTML.
type HTMLOptions struct {
	// AssetsHost overrides where the echarts javascript is loaded from.
	AssetsHost string
}

// RenderHTML writes a page with the measurement history, the projection of
// d.Axis and the weekly rollup.
func RenderHTML(w io.Writer, d Data, o HTMLOptions) error {
	if len(d.Snapshots) == 0 {
		return ErrNoData
	}

	page := components.NewPage()
	page.PageTitle = d.title()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.AddCharts(historyChart(d, o))
	if len(d.Weeks) > 0 {
		page.AddCharts(weeklyChart(d, o))
	}
	return page.Render(w)
}

func initOpts(o HTMLOptions) opts.Initialization {
	return opts.Initialization{Width: "100%", Height: "480px", AssetsHost: o.AssetsHost}
}

func historyChart(d Data, o HTMLOptions) *charts.Line {
	unit := d.unit()
	length := d.series(measure.Length)
	girth := d.series(measure.Girth)

	// one x-axis category per distinct date, history first then projection
	index := map[string]int{}
	var dates []string
	add := func(s string) {
		if _, ok := index[s]; !ok {
			index[s] = len(dates)
			dates = append(dates, s)
		}
	}
	for _, p := range append(append([]point{}, length...), girth...) {
		add(p.t.Format(dateLayout))
	}
	sort.Strings(dates)
	for i, s := range dates {
		index[s] = i
	}
	for _, st := range d.Projection {
		add(st.Date.Format(dateLayout))
	}

	values := func(ps []point) []opts.LineData {
		data := make([]opts.LineData, len(dates))
		for i := range data {
			data[i] = opts.LineData{Value: nil}
		}
		for _, p := range ps {
			data[index[p.t.Format(dateLayout)]] = opts.LineData{Value: p.v}
		}
		return data
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(o)),
		charts.WithTitleOpts(opts.Title{
			Title:    d.title(),
			Subtitle: fmt.Sprintf("%d snapshots, streak %d, consistency %.0f%%", d.Metrics.TotalSnapshots, d.Metrics.CurrentStreak, d.Metrics.Consistency),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit, Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
	)
	line.SetXAxis(dates)
	if len(length) > 0 {
		line.AddSeries("length", values(length), charts.WithLineStyleOpts(opts.LineStyle{Color: colorLength, Width: 2}))
	}
	if len(girth) > 0 {
		line.AddSeries("girth", values(girth), charts.WithLineStyleOpts(opts.LineStyle{Color: colorGirth, Width: 2}))
	}

	if len(d.Projection) > 0 {
		projected := make([]opts.LineData, len(dates))
		low := make([]opts.LineData, len(dates))
		high := make([]opts.LineData, len(dates))
		for i := range projected {
			projected[i], low[i], high[i] = opts.LineData{Value: nil}, opts.LineData{Value: nil}, opts.LineData{Value: nil}
		}
		for _, st := range d.Projection {
			i := index[st.Date.Format(dateLayout)]
			projected[i] = opts.LineData{Value: d.display(st.PredictedValue)}
			low[i] = opts.LineData{Value: d.display(st.Low)}
			high[i] = opts.LineData{Value: d.display(st.High)}
		}
		name := "projected " + string(d.Axis)
		line.AddSeries(name, projected, charts.WithLineStyleOpts(opts.LineStyle{Color: colorProjected, Width: 2, Type: "dashed"}))
		line.AddSeries("low", low, charts.WithLineStyleOpts(opts.LineStyle{Color: colorBand, Width: 1, Type: "dotted"}))
		line.AddSeries("high", high, charts.WithLineStyleOpts(opts.LineStyle{Color: colorBand, Width: 1, Type: "dotted"}))
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	return line
}

func weeklyChart(d Data, o HTMLOptions) *charts.Bar {
	x := make([]string, len(d.Weeks))
	counts := make([]opts.BarData, len(d.Weeks))
	for i, wk := range d.Weeks {
		x[i] = wk.Start.Format(dateLayout)
		counts[i] = opts.BarData{Value: wk.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(o)),
		charts.WithTitleOpts(opts.Title{Title: "Measurements per week"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("snapshots", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
