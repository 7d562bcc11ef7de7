package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"swell-alerts/internal/forecast"
)

// ExportOptions hold parameters for exporting a spot's forecast series.
type ExportOptions struct {
	SpotID    string
	Latitude  float64
	Longitude float64
	PNGPath   string
	CSVPath   string
}

// Export fetches the forecast series for a spot and renders it as CSV
// and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.SpotID == "" {
		return errors.New("--spot is required")
	}

	fetcher := a.newFetcher()
	samples, err := fetcher.Fetch(ctx, opts.SpotID, opts.Latitude, opts.Longitude)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Str("spot", opts.SpotID).Msg("no forecast samples to export")
		return nil
	}

	a.Logger.Info().Str("spot", opts.SpotID).Int("samples", len(samples)).Msg("exporting forecast series")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, samples); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, samples); err != nil {
			return err
		}
	}
	return nil
}

func writeSamplesCSV(path string, samples []forecast.Sample) error {
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

	header := []string{"time", "wave_height_m", "primary_period_s", "energy", "wind_speed_kn", "wind_angle_deg"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range samples {
		record := []string{
			s.Time.Format(time.RFC3339),
			formatFloat(s.CombinedHeight()),
			formatFloat(s.PrimaryPeriod()),
			formatFloat(s.Energy),
			formatFloat(s.WindSpeed),
			formatFloat(s.WindAngle),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeSamplesPNG(path string, samples []forecast.Sample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	height := make([]float64, len(samples))
	period := make([]float64, len(samples))
	energy := make([]float64, len(samples))

	for i, s := range samples {
		x[i] = s.Time
		height[i] = s.CombinedHeight()
		period[i] = s.PrimaryPeriod()
		energy[i] = s.Energy
	}

	formatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Wave height (m) / Period (s)",
			ValueFormatter: formatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Energy",
			ValueFormatter: formatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Wave height",
				XValues: x,
				YValues: height,
			},
			chart.TimeSeries{
				Name:    "Primary period",
				XValues: x,
				YValues: period,
			},
			chart.TimeSeries{
				Name:    "Energy",
				XValues: x,
				YValues: energy,
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

func formatFloat(v float64) string {
	return chart.FloatValueFormatterWithFormat(v, "%.2f")
}
