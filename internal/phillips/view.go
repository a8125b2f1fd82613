package phillips

import (
	"macropulse/internal/chart"
	"macropulse/internal/macroapi"
)

// AlarmThreshold is the predicted inflation (in percent) above which the
// result is shown as alarming.
const AlarmThreshold = 5.0

// Style is the visual tone of a value.
type Style string

const (
	StyleAlarm    Style = "alarm"
	StylePositive Style = "positive"
)

// View is the render model of the panel.
type View struct {
	Points []Point
	// Prediction is nil until a submission succeeded.
	Prediction *Prediction
}

// Point is one scatter dot with its tooltip.
type Point struct {
	macroapi.PhillipsPoint
	Tooltip Tooltip
}

// Tooltip mirrors the "Economic Snapshot" hover card.
type Tooltip struct {
	Title        string
	Unemployment string
	Inflation    string
}

// Prediction is the rendered forecaster result.
type Prediction struct {
	Raw   float64
	Value string
	Style Style
}

// Series returns the raw points for the chart renderer.
func (v View) Series() []macroapi.PhillipsPoint {
	out := make([]macroapi.PhillipsPoint, len(v.Points))
	for i, p := range v.Points {
		out[i] = p.PhillipsPoint
	}
	return out
}

func buildView(points []macroapi.PhillipsPoint, prediction *float64) View {
	view := View{Points: make([]Point, 0, len(points))}
	for _, p := range points {
		view.Points = append(view.Points, Point{PhillipsPoint: p, Tooltip: NewTooltip(p)})
	}
	if prediction != nil {
		pred := NewPrediction(*prediction)
		view.Prediction = &pred
	}
	return view
}

// NewTooltip renders the hover card for one point.
func NewTooltip(p macroapi.PhillipsPoint) Tooltip {
	return Tooltip{
		Title:        "Economic Snapshot",
		Unemployment: chart.FormatPercent(p.Unemployment),
		Inflation:    chart.FormatPercent(p.Inflation),
	}
}

// NewPrediction styles a predicted inflation value.
func NewPrediction(v float64) Prediction {
	pred := Prediction{Raw: v, Value: chart.FormatPercent(v), Style: StylePositive}
	if v > AlarmThreshold {
		pred.Style = StyleAlarm
	}
	return pred
}
