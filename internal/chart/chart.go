// Package chart renders the MacroPulse charts with go-chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"macropulse/internal/macroapi"
)

// Format selects the output encoding.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
)

// ErrNotEnoughData is returned when a series cannot span a drawable range.
var ErrNotEnoughData = errors.New("chart: at least two data points required")

var (
	colorBackground = drawing.ColorFromHex("0f172a")
	colorAxis       = drawing.ColorFromHex("94a3b8")
	colorGrid       = drawing.ColorFromHex("1e293b")
	colorLine       = drawing.ColorFromHex("22d3ee")
	colorDot        = drawing.ColorFromHex("818cf8")
	colorReference  = drawing.ColorFromHex("64748b")
)

// Size in pixels of a rendered chart.
type Size struct {
	Width  int
	Height int
}

// DefaultSize matches the dashboard chart area.
var DefaultSize = Size{Width: 1200, Height: 400}

func (f Format) provider() (gochart.RendererProvider, error) {
	switch f {
	case SVG:
		return gochart.SVG, nil
	case PNG:
		return gochart.PNG, nil
	default:
		return nil, fmt.Errorf("chart: unsupported format %q", f)
	}
}

// InflationLine draws the year-over-year inflation history as a line keyed by date.
// Points whose date cannot be parsed are skipped.
func InflationLine(points []macroapi.InflationPoint, format Format, size Size, w io.Writer) error {
	provider, err := format.provider()
	if err != nil {
		return err
	}

	x := make([]time.Time, 0, len(points))
	y := make([]float64, 0, len(points))
	for _, p := range points {
		t, ok := ParseDate(p.Date)
		if !ok {
			continue
		}
		x = append(x, t)
		y = append(y, p.InflationYoYPct)
	}
	if len(x) < 2 {
		return ErrNotEnoughData
	}

	graph := gochart.Chart{
		Width:      size.Width,
		Height:     size.Height,
		Background: gochart.Style{FillColor: colorBackground},
		Canvas:     gochart.Style{FillColor: colorBackground},
		XAxis: gochart.XAxis{
			ValueFormatter: monthYearValueFormatter,
			Style:          axisStyle(),
		},
		YAxis: gochart.YAxis{
			Name:      "Inflation YoY (%)",
			NameStyle: axisStyle(),
			Style:     axisStyle(),
			ValueFormatter: func(v interface{}) string {
				return gochart.FloatValueFormatterWithFormat(v, "%.1f")
			},
			GridMajorStyle: gochart.Style{StrokeColor: colorGrid, StrokeWidth: 1},
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    "Inflation",
				XValues: x,
				YValues: y,
				Style: gochart.Style{
					StrokeColor: colorLine,
					StrokeWidth: 2,
				},
			},
		},
	}

	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("render inflation chart: %w", err)
	}
	return nil
}

// PhillipsScatter draws unemployment against inflation as dots, with a dashed
// reference line at zero inflation when zero lies inside the data range.
func PhillipsScatter(points []macroapi.PhillipsPoint, format Format, size Size, w io.Writer) error {
	provider, err := format.provider()
	if err != nil {
		return err
	}
	if len(points) < 2 {
		return ErrNotEnoughData
	}

	x := make([]float64, len(points))
	y := make([]float64, len(points))
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, p := range points {
		x[i] = p.Unemployment
		y[i] = p.Inflation
		minX, maxX = math.Min(minX, p.Unemployment), math.Max(maxX, p.Unemployment)
		minY, maxY = math.Min(minY, p.Inflation), math.Max(maxY, p.Inflation)
	}

	percent := func(v interface{}) string {
		return gochart.FloatValueFormatterWithFormat(v, "%.1f%%")
	}

	series := []gochart.Series{
		gochart.ContinuousSeries{
			Name:    "Economics Data",
			XValues: x,
			YValues: y,
			Style: gochart.Style{
				StrokeWidth: gochart.Disabled,
				DotWidth:    5,
				DotColor:    colorDot,
			},
		},
	}
	if minY <= 0 && maxY >= 0 && minX < maxX {
		series = append(series, gochart.ContinuousSeries{
			Name:    "Zero",
			XValues: []float64{minX, maxX},
			YValues: []float64{0, 0},
			Style: gochart.Style{
				StrokeColor:     colorReference,
				StrokeWidth:     1,
				StrokeDashArray: []float64{3, 3},
			},
		})
	}

	graph := gochart.Chart{
		Width:      size.Width,
		Height:     size.Height,
		Background: gochart.Style{FillColor: colorBackground},
		Canvas:     gochart.Style{FillColor: colorBackground},
		XAxis: gochart.XAxis{
			Name:           "Unemployment Rate (%)",
			NameStyle:      axisStyle(),
			Style:          axisStyle(),
			ValueFormatter: percent,
		},
		YAxis: gochart.YAxis{
			Name:           "Inflation Rate (%)",
			NameStyle:      axisStyle(),
			Style:          axisStyle(),
			ValueFormatter: percent,
			GridMajorStyle: gochart.Style{StrokeColor: colorGrid, StrokeWidth: 1},
		},
		Series: series,
	}

	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("render phillips chart: %w", err)
	}
	return nil
}

func axisStyle() gochart.Style {
	return gochart.Style{
		FontColor:   colorAxis,
		FontSize:    10,
		StrokeColor: colorAxis,
	}
}

// Downsample keeps at most max evenly spaced items, always including the
// first and last.
func Downsample[T any](items []T, max int) []T {
	if max <= 0 || len(items) <= max {
		return items
	}
	if max == 1 {
		return items[len(items)-1:]
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}
