package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"macropulse/internal/dashboard"
	"macropulse/internal/macroapi"
	"macropulse/internal/service"
)

// SimulateAlert 通过给定的预测/利差模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions, out io.Writer) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	source := &staticSource{
		prediction: macroapi.PredictionResult{
			Model:                  "simulated",
			PredictedNextInflation: opts.Forecast,
			Direction:              opts.Direction,
		},
		risk: macroapi.RiskIndicator{
			YieldSpread: opts.Spread,
			Level:       opts.Level,
			Color:       opts.Color,
		},
	}

	svc := service.New(a.Config, nil, source, nil, nil, a.newNotifier(), a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	snap := service.BuildSnapshot(bucket, dashboard.Load(ctx, source))
	sent, err := svc.Alert(ctx, snap)
	if err != nil {
		return err
	}
	if !sent {
		_, err = fmt.Fprintln(out, "snapshot does not meet any alert rule; nothing sent")
		return err
	}
	_, err = fmt.Fprintln(out, "alert dispatched")
	return err
}

// staticSource serves fixed dashboard data.
type staticSource struct {
	history    []macroapi.InflationPoint
	prediction macroapi.PredictionResult
	risk       macroapi.RiskIndicator
}

func (s *staticSource) FetchInflation(context.Context) ([]macroapi.InflationPoint, error) {
	return s.history, nil
}

func (s *staticSource) FetchPrediction(context.Context) (macroapi.PredictionResult, error) {
	return s.prediction, nil
}

func (s *staticSource) FetchRisk(context.Context) (macroapi.RiskIndicator, error) {
	return s.risk, nil
}

var _ macroapi.DashboardSource = (*staticSource)(nil)
