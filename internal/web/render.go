package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"macropulse/internal/chart"
	"macropulse/internal/dashboard"
	"macropulse/internal/macroapi"
	"macropulse/internal/phillips"
)

//go:embed templates/*.html
var templateFS embed.FS

type renderer struct {
	templates *template.Template
}

func newRenderer() (*renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &renderer{templates: tmpl}, nil
}

// Render implements echo.Renderer.
func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type dashboardData struct {
	View           dashboard.View
	ChartSVG       template.HTML
	RefreshSeconds int
}

type phillipsData struct {
	View     phillips.View
	ChartSVG template.HTML
	Input    string
}

// inflationSVG renders the history chart inline. A series too short to draw
// yields no markup; the point list still renders.
func inflationSVG(history []macroapi.InflationPoint, logger zerolog.Logger) template.HTML {
	var buf bytes.Buffer
	if err := chart.InflationLine(history, chart.SVG, chart.DefaultSize, &buf); err != nil {
		if !errors.Is(err, chart.ErrNotEnoughData) {
			logger.Error().Err(err).Msg("render inflation chart")
		}
		return ""
	}
	return template.HTML(buf.String())
}

func phillipsSVG(points []macroapi.PhillipsPoint, logger zerolog.Logger) template.HTML {
	if len(points) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := chart.PhillipsScatter(points, chart.SVG, chart.Size{Width: 900, Height: 450}, &buf); err != nil {
		if !errors.Is(err, chart.ErrNotEnoughData) {
			logger.Error().Err(err).Msg("render phillips chart")
		}
		return ""
	}
	return template.HTML(buf.String())
}
