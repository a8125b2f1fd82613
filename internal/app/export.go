package app

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"macropulse/internal/chart"
	"macropulse/internal/macroapi"
)

var exportSize = chart.Size{Width: 1280, Height: 720}

// Export writes the live inflation history as CSV and/or PNG and the
// Phillips scatter as PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.PhillipsPNGPath == "" {
		return errors.New("at least one of --csv, --png or --phillips-png must be provided")
	}

	maxPoints := a.Config.ResolveMaxPoints(opts.MaxPoints)
	client := a.newClient()

	if opts.CSVPath != "" || opts.PNGPath != "" {
		history, err := client.FetchInflation(ctx)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			a.Logger.Info().Msg("inflation history is empty; nothing to export")
		} else {
			sampled := chart.Downsample(history, maxPoints)
			a.Logger.Info().Int("total", len(history)).Int("exported", len(sampled)).Msg("exporting inflation history")

			if opts.CSVPath != "" {
				if err := writeFile(opts.CSVPath, func(w io.Writer) error { return writeHistoryCSV(w, sampled) }); err != nil {
					return err
				}
			}
			if opts.PNGPath != "" {
				if err := writeFile(opts.PNGPath, func(w io.Writer) error {
					return chart.InflationLine(sampled, chart.PNG, exportSize, w)
				}); err != nil {
					return err
				}
			}
		}
	}

	if opts.PhillipsPNGPath != "" {
		points, err := client.FetchPhillipsCurve(ctx)
		if err != nil {
			return err
		}
		if err := writeFile(opts.PhillipsPNGPath, func(w io.Writer) error {
			return chart.PhillipsScatter(points, chart.PNG, exportSize, w)
		}); err != nil {
			return err
		}
		a.Logger.Info().Int("points", len(points)).Msg("exported phillips scatter")
	}

	return nil
}

func writeHistoryCSV(w io.Writer, history []macroapi.InflationPoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "month", "cpi_value", "inflation_yoy_pct"}); err != nil {
		return err
	}
	for _, p := range history {
		record := []string{
			p.Date,
			chart.FormatMonthYear(p.Date),
			decimal.NewFromFloat(p.CPIValue).String(),
			decimal.NewFromFloat(p.InflationYoYPct).StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
