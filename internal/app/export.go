package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"churn-risk-alerts/internal/dashboard"
)

// Export renders the churn risk trend as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	if opts.Days <= 0 {
		opts.Days = a.Config.Export.TrendDays
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = a.Config.Export.MaxDataPoints
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	since := time.Now().UTC().AddDate(0, 0, -opts.Days)
	points, err := a.newAggregator(store).Trend(ctx, since)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Msg("no risk history found for export window")
		return nil
	}

	downsampled := downsampleTrend(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting trend")

	if opts.CSVPath != "" {
		if err := writeTrendCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeTrendPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleTrend(points []dashboard.TrendPoint, max int) []dashboard.TrendPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	// A single slot carries the most recent day; the interpolation below
	// needs at least two endpoints.
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]dashboard.TrendPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeTrendCSV(path string, points []dashboard.TrendPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"day", "evaluations", "average_probability", "high_risk"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, point := range points {
		record := []string{
			point.Day,
			strconv.Itoa(point.Evaluations),
			strconv.FormatFloat(point.AverageProbability, 'f', 4, 64),
			strconv.Itoa(point.HighRisk),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeTrendPNG(path string, points []dashboard.TrendPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	average := make([]float64, len(points))
	highRisk := make([]float64, len(points))

	for i, point := range points {
		day, err := time.Parse("2006-01-02", point.Day)
		if err != nil {
			return err
		}
		x[i] = day
		average[i] = point.AverageProbability
		highRisk[i] = float64(point.HighRisk)
	}

	probabilityFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Average churn probability",
			ValueFormatter: probabilityFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "High-risk customers",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Average probability",
				XValues: x,
				YValues: average,
			},
			chart.TimeSeries{
				Name:    "High risk",
				XValues: x,
				YValues: highRisk,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
