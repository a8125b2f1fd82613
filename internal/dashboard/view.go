package dashboard

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"macropulse/internal/chart"
	"macropulse/internal/macroapi"
)

// Style is the visual tone of a value.
type Style string

const (
	StyleAlarm    Style = "alarm"
	StylePositive Style = "positive"
)

// LoadingMessage fills the chart area while the join is outstanding.
const LoadingMessage = "Loading AI Pipeline..."

const (
	arrowUp   = "↑"
	arrowDown = "↓"
)

// View is the render model of the dashboard.
type View struct {
	Loading bool
	Error   string

	// CurrentInflation is empty while loading.
	CurrentInflation string
	// Forecast and Risk are nil until a value arrived; render a skeleton then.
	Forecast *ForecastCard
	Risk     *RiskCard
	// RiskIconStyle tints the risk card icon even before data arrives.
	RiskIconStyle Style

	Chart ChartView
}

// ForecastCard is the "AI Forecast" summary.
type ForecastCard struct {
	Value     string
	Direction string
	Arrow     string
	Style     Style
	Model     string
}

// RiskCard is the "Recession Risk" summary.
type RiskCard struct {
	Spread string
	Level  string
	Style  Style
}

// ChartView is either a list of points or a message in their place.
type ChartView struct {
	Show    bool
	Message string
	Points  []ChartPoint
	// History is the raw series handed to the chart renderer.
	History []macroapi.InflationPoint
}

// ChartPoint is one x-axis entry with its tooltip.
type ChartPoint struct {
	Date    string
	Label   string
	Value   float64
	Tooltip string
}

func buildView(loading bool, errMsg string, history []macroapi.InflationPoint, prediction *macroapi.PredictionResult, risk *macroapi.RiskIndicator) View {
	view := View{
		Loading:       loading,
		Error:         errMsg,
		RiskIconStyle: StylePositive,
	}
	if risk != nil {
		view.RiskIconStyle = RiskStyle(risk.Color)
	}

	if loading {
		view.Chart = ChartView{Message: LoadingMessage}
		return view
	}

	view.CurrentInflation = CurrentInflation(history)
	if prediction != nil {
		card := NewForecastCard(*prediction)
		view.Forecast = &card
	}
	if risk != nil {
		card := NewRiskCard(*risk)
		view.Risk = &card
	}

	if errMsg != "" {
		view.Chart = ChartView{Message: errMsg}
		return view
	}

	points := make([]ChartPoint, 0, len(history))
	for _, p := range history {
		points = append(points, ChartPoint{
			Date:    p.Date,
			Label:   chart.FormatMonthYear(p.Date),
			Value:   p.InflationYoYPct,
			Tooltip: InflationTooltip(p),
		})
	}
	view.Chart = ChartView{Show: true, Points: points, History: history}
	return view
}

// CurrentInflation formats the latest year-over-year inflation, "0.00%" for
// an empty history.
func CurrentInflation(history []macroapi.InflationPoint) string {
	if len(history) == 0 {
		return Fixed2(0) + "%"
	}
	return Fixed2(history[len(history)-1].InflationYoYPct) + "%"
}

// NewForecastCard maps a prediction to its card. Anything but UP is shown as DOWN.
func NewForecastCard(p macroapi.PredictionResult) ForecastCard {
	card := ForecastCard{
		Value:     Fixed2(p.PredictedNextInflation) + "%",
		Direction: p.Direction,
		Arrow:     arrowDown,
		Style:     StylePositive,
		Model:     p.Model,
	}
	if p.Direction == macroapi.DirectionUp {
		card.Arrow = arrowUp
		card.Style = StyleAlarm
	}
	return card
}

// NewRiskCard maps the risk indicator to its card.
func NewRiskCard(r macroapi.RiskIndicator) RiskCard {
	return RiskCard{
		Spread: Fixed2(r.YieldSpread),
		Level:  r.Level,
		Style:  RiskStyle(r.Color),
	}
}

// RiskStyle is binary: only red is alarming.
func RiskStyle(color string) Style {
	if color == macroapi.ColorRed {
		return StyleAlarm
	}
	return StylePositive
}

// InflationTooltip renders "Mar 24: 3.48%".
func InflationTooltip(p macroapi.InflationPoint) string {
	return chart.FormatMonthYear(p.Date) + ": " + Fixed2(p.InflationYoYPct) + "%"
}

// exactFloatDigits is enough fractional digits to hold any float64 exactly.
const exactFloatDigits = 1074

// Fixed2 formats v with exactly two decimals. It rounds the exact binary
// value half away from zero, so 1.005 (stored as 1.00499...) gives "1.00"
// and 0.125 gives "0.13". Negative values keep their sign: -0.001 is "-0.00".
func Fixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	exact := decimal.NewFromBigRat(new(big.Rat).SetFloat64(v), exactFloatDigits)
	out := exact.StringFixed(2)
	if v < 0 && !strings.HasPrefix(out, "-") {
		out = "-" + out
	}
	return out
}
