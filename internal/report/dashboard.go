package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/cafesense/occupancy.report/internal/db"
	"github.com/cafesense/occupancy.report/internal/units"
	"github.com/cafesense/occupancy.report/internal/vision"
)

// stayHistogramBins buckets customer stay times for the distribution chart.
const stayHistogramBins = 10

// SaveDashboard renders the run dashboard as a single HTML page: table usage
// bar chart, table preference pie, and stay-time distribution, with summary
// stats in the chart titles.
func SaveDashboard(path string, summaries []*vision.IdentitySummary, totals []db.TableTotal) error {
	page := components.NewPage()
	page.PageTitle = "Cafe Customer Analysis Report"

	page.AddCharts(
		tableUsageBar(totals),
		tablePreferencePie(totals),
		stayTimeHistogram(summaries),
	)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}

func tableUsageBar(totals []db.TableTotal) *charts.Bar {
	bar := charts.NewBar()

	subtitle := "No confirmed table sessions"
	if len(totals) > 0 {
		subtitle = fmt.Sprintf("Busiest table: %s (%s)",
			totals[0].TableName, units.FormatDuration(totals[0].TotalSeconds))
	}
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Table Usage Times (Minutes)",
		Subtitle: subtitle,
	}))

	names := make([]string, 0, len(totals))
	values := make([]opts.BarData, 0, len(totals))
	for _, t := range totals {
		names = append(names, t.TableName)
		values = append(values, opts.BarData{Value: round1(units.Minutes(t.TotalSeconds))})
	}
	bar.SetXAxis(names).AddSeries("minutes", values)
	return bar
}

func tablePreferencePie(totals []db.TableTotal) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title: "Table Preference Distribution",
	}))

	values := make([]opts.PieData, 0, len(totals))
	for _, t := range totals {
		values = append(values, opts.PieData{
			Name:  t.TableName,
			Value: round1(units.Minutes(t.TotalSeconds)),
		})
	}
	pie.AddSeries("tables", values)
	return pie
}

func stayTimeHistogram(summaries []*vision.IdentitySummary) *charts.Bar {
	stays := make([]float64, 0, len(summaries))
	for _, s := range summaries {
		if mins := units.Minutes(s.TotalSeconds()); mins > 0 {
			stays = append(stays, mins)
		}
	}

	bar := charts.NewBar()
	subtitle := "No customers observed"
	if len(stays) > 0 {
		subtitle = fmt.Sprintf("Customers: %d, average stay: %.1f min", len(stays), stat.Mean(stays, nil))
	}
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Customer Stay Time Distribution",
		Subtitle: subtitle,
	}))

	labels, counts := histogram(stays, stayHistogramBins)
	values := make([]opts.BarData, len(counts))
	for i, c := range counts {
		values[i] = opts.BarData{Value: c}
	}
	bar.SetXAxis(labels).AddSeries("customers", values)
	return bar
}

// histogram buckets values (minutes) into bins spanning [0, max].
func histogram(values []float64, bins int) ([]string, []int) {
	labels := make([]string, bins)
	counts := make([]int, bins)

	var max float64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		max = 1
	}
	width := max / float64(bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.1f-%.1f", float64(i)*width, float64(i+1)*width)
	}
	for _, v := range values {
		idx := int(v / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return labels, counts
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
