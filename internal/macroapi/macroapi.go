// Package macroapi talks to the MacroPulse prediction backend.
package macroapi

import (
	"context"
	"time"
)

// Endpoint paths exposed by the backend.
const (
	PathInflation     = "/api/inflation"
	PathPredict       = "/api/predict"
	PathRisk          = "/api/risk"
	PathPhillipsCurve = "/api/phillips-curve"
)

// Forecast directions returned by GET /api/predict.
const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
)

// Risk colors returned by GET /api/risk.
const (
	ColorRed    = "red"
	ColorYellow = "yellow"
	ColorGreen  = "green"
)

// InflationPoint is one month of the CPI history.
type InflationPoint struct {
	Date            string  `json:"date"`
	CPIValue        float64 `json:"cpi_value"`
	InflationYoYPct float64 `json:"inflation_yoy_pct"`
}

// PredictionResult is the model's next-month inflation forecast.
type PredictionResult struct {
	Model                  string  `json:"model"`
	LastActualInflation    float64 `json:"last_actual_inflation"`
	PredictedNextInflation float64 `json:"predicted_next_inflation"`
	Direction              string  `json:"direction"`
}

// RiskIndicator is the 10Y-2Y treasury spread recession signal.
type RiskIndicator struct {
	YieldSpread float64 `json:"yield_spread"`
	Level       string  `json:"level"`
	Color       string  `json:"color"`
}

// PhillipsPoint is one (unemployment, inflation) observation.
type PhillipsPoint struct {
	Unemployment float64 `json:"unemployment"`
	Inflation    float64 `json:"inflation"`
}

// PredictRequest is the body of POST /api/predict.
type PredictRequest struct {
	UnemploymentRate float64 `json:"unemployment_rate"`
}

// PredictResponse is the reply of POST /api/predict.
type PredictResponse struct {
	PredictedInflation float64 `json:"predicted_inflation"`
}

// DashboardSource serves the three dashboard datasets.
type DashboardSource interface {
	FetchInflation(ctx context.Context) ([]InflationPoint, error)
	FetchPrediction(ctx context.Context) (PredictionResult, error)
	FetchRisk(ctx context.Context) (RiskIndicator, error)
}

// PhillipsSource serves the scatter points and scenario predictions.
type PhillipsSource interface {
	FetchPhillipsCurve(ctx context.Context) ([]PhillipsPoint, error)
	PredictInflation(ctx context.Context, unemploymentRate float64) (float64, error)
}

// Observer is notified after every request. *metrics.Recorder satisfies it.
type Observer interface {
	ObserveRequest(endpoint string, took time.Duration, err error)
}
