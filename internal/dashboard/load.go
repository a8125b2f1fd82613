// Package dashboard owns the dashboard page state: the joined load of the
// inflation history, the forecast and the recession-risk indicator, and the
// render model derived from it.
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"macropulse/internal/macroapi"
)

// Data is everything the dashboard needs, received together.
type Data struct {
	History    []macroapi.InflationPoint
	Prediction macroapi.PredictionResult
	Risk       macroapi.RiskIndicator
}

// Outcome is the result of the joined load: either all three payloads or the
// reason the join failed. There is no partial success.
type Outcome struct {
	Data Data
	Err  error
}

// OK reports whether all three requests succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Load issues the three requests concurrently and joins them all-or-nothing.
// The first failure cancels the remaining requests and becomes the outcome.
func Load(ctx context.Context, source macroapi.DashboardSource) Outcome {
	g, gctx := errgroup.WithContext(ctx)

	var data Data
	g.Go(func() error {
		history, err := source.FetchInflation(gctx)
		if err != nil {
			return fmt.Errorf("fetch inflation: %w", err)
		}
		data.History = history
		return nil
	})
	g.Go(func() error {
		prediction, err := source.FetchPrediction(gctx)
		if err != nil {
			return fmt.Errorf("fetch prediction: %w", err)
		}
		data.Prediction = prediction
		return nil
	})
	g.Go(func() error {
		risk, err := source.FetchRisk(gctx)
		if err != nil {
			return fmt.Errorf("fetch risk: %w", err)
		}
		data.Risk = risk
		return nil
	})

	if err := g.Wait(); err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Data: data}
}
