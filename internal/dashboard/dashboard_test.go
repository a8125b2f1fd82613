package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"macropulse/internal/macroapi"
)

type fakeSource struct {
	inflation  func(ctx context.Context) ([]macroapi.InflationPoint, error)
	prediction func(ctx context.Context) (macroapi.PredictionResult, error)
	risk       func(ctx context.Context) (macroapi.RiskIndicator, error)
}

func (f *fakeSource) FetchInflation(ctx context.Context) ([]macroapi.InflationPoint, error) {
	return f.inflation(ctx)
}

func (f *fakeSource) FetchPrediction(ctx context.Context) (macroapi.PredictionResult, error) {
	return f.prediction(ctx)
}

func (f *fakeSource) FetchRisk(ctx context.Context) (macroapi.RiskIndicator, error) {
	return f.risk(ctx)
}

func okSource(history []macroapi.InflationPoint, pred macroapi.PredictionResult, risk macroapi.RiskIndicator) *fakeSource {
	return &fakeSource{
		inflation:  func(context.Context) ([]macroapi.InflationPoint, error) { return history, nil },
		prediction: func(context.Context) (macroapi.PredictionResult, error) { return pred, nil },
		risk:       func(context.Context) (macroapi.RiskIndicator, error) { return risk, nil },
	}
}

func mountAndWait(t *testing.T, source macroapi.DashboardSource, opts ...Option) *Page {
	t.Helper()
	page := NewPage(source, zerolog.Nop(), opts...)
	page.Mount(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := page.Wait(ctx); err != nil {
		t.Fatalf("page did not settle: %v", err)
	}
	return page
}

func TestEmptyHistoryRendersZero(t *testing.T) {
	page := mountAndWait(t, okSource(nil,
		macroapi.PredictionResult{PredictedNextInflation: 2.5, Direction: macroapi.DirectionDown},
		macroapi.RiskIndicator{YieldSpread: 0.4, Level: "Low Risk", Color: macroapi.ColorGreen},
	))

	view := page.View()
	if view.CurrentInflation != "0.00%" {
		t.Fatalf("empty history should render 0.00%%, got %q", view.CurrentInflation)
	}
	if !view.Chart.Show || len(view.Chart.Points) != 0 {
		t.Fatalf("chart should be shown with no points, got %+v", view.Chart)
	}
}

func TestSuccessfulView(t *testing.T) {
	history := []macroapi.InflationPoint{
		{Date: "2024-02-01", CPIValue: 310.3, InflationYoYPct: 3.1},
		{Date: "2024-03-01", CPIValue: 312.2, InflationYoYPct: 3.4789},
	}
	page := mountAndWait(t, okSource(history,
		macroapi.PredictionResult{Model: "Random Forest Regressor", PredictedNextInflation: 3.6, Direction: macroapi.DirectionUp},
		macroapi.RiskIndicator{YieldSpread: -0.351, Level: "High Risk", Color: macroapi.ColorRed},
	))

	view := page.View()
	if view.Loading || view.Error != "" {
		t.Fatalf("unexpected state loading=%v error=%q", view.Loading, view.Error)
	}
	if view.CurrentInflation != "3.48%" {
		t.Fatalf("unexpected current inflation %q", view.CurrentInflation)
	}
	if view.Forecast == nil || view.Forecast.Value != "3.60%" || view.Forecast.Arrow != arrowUp || view.Forecast.Style != StyleAlarm {
		t.Fatalf("unexpected forecast %+v", view.Forecast)
	}
	if view.Risk == nil || view.Risk.Spread != "-0.35" || view.Risk.Level != "High Risk" || view.Risk.Style != StyleAlarm {
		t.Fatalf("unexpected risk %+v", view.Risk)
	}
	if view.RiskIconStyle != StyleAlarm {
		t.Fatalf("red risk should tint the icon")
	}
	if len(view.Chart.Points) != 2 || view.Chart.Points[1].Label != "Mar 24" || view.Chart.Points[1].Tooltip != "Mar 24: 3.48%" {
		t.Fatalf("unexpected chart points %+v", view.Chart.Points)
	}
}

func TestForecastDirection(t *testing.T) {
	up := NewForecastCard(macroapi.PredictionResult{PredictedNextInflation: 4, Direction: macroapi.DirectionUp})
	if up.Arrow != arrowUp || up.Style != StyleAlarm {
		t.Fatalf("UP should be alarm with up arrow, got %+v", up)
	}

	down := NewForecastCard(macroapi.PredictionResult{PredictedNextInflation: 2, Direction: macroapi.DirectionDown})
	if down.Arrow != arrowDown || down.Style != StylePositive {
		t.Fatalf("DOWN should be positive with down arrow, got %+v", down)
	}
	if down.Value != "2.00%" {
		t.Fatalf("unexpected forecast value %q", down.Value)
	}
}

func TestRiskStyleOnlyRedIsAlarm(t *testing.T) {
	cases := map[string]Style{
		macroapi.ColorRed:    StyleAlarm,
		macroapi.ColorYellow: StylePositive,
		macroapi.ColorGreen:  StylePositive,
		"":                   StylePositive,
		"RED":                StylePositive,
	}
	for color, want := range cases {
		if got := RiskStyle(color); got != want {
			t.Errorf("RiskStyle(%q) = %q, want %q", color, got, want)
		}
	}
}

func TestMissingSpreadRendersZero(t *testing.T) {
	card := NewRiskCard(macroapi.RiskIndicator{Level: "Moderate", Color: macroapi.ColorYellow})
	if card.Spread != "0.00" {
		t.Fatalf("missing spread should render 0.00, got %q", card.Spread)
	}
}

func TestAnySingleFailureFlipsToError(t *testing.T) {
	boom := errors.New("boom")
	base := func() *fakeSource {
		return okSource(
			[]macroapi.InflationPoint{{Date: "2024-01-01", InflationYoYPct: 3}},
			macroapi.PredictionResult{Direction: macroapi.DirectionUp},
			macroapi.RiskIndicator{Color: macroapi.ColorGreen},
		)
	}

	failing := map[string]func(*fakeSource){
		"inflation": func(f *fakeSource) {
			f.inflation = func(context.Context) ([]macroapi.InflationPoint, error) { return nil, boom }
		},
		"prediction": func(f *fakeSource) {
			f.prediction = func(context.Context) (macroapi.PredictionResult, error) {
				return macroapi.PredictionResult{}, boom
			}
		},
		"risk": func(f *fakeSource) {
			f.risk = func(context.Context) (macroapi.RiskIndicator, error) { return macroapi.RiskIndicator{}, boom }
		},
	}

	for name, breakIt := range failing {
		t.Run(name, func(t *testing.T) {
			source := base()
			breakIt(source)

			view := mountAndWait(t, source).View()
			if view.Error != ErrorMessage {
				t.Fatalf("expected error state, got %q", view.Error)
			}
			if view.Chart.Show || view.Chart.Message != ErrorMessage {
				t.Fatalf("chart area should show the error, got %+v", view.Chart)
			}
			if view.Forecast != nil || view.Risk != nil {
				t.Fatal("no partial success: cards must not receive values")
			}
			if view.CurrentInflation != "0.00%" {
				t.Fatalf("inflation card keeps its default, got %q", view.CurrentInflation)
			}
		})
	}
}

func TestLoadingView(t *testing.T) {
	release := make(chan struct{})
	source := okSource(nil, macroapi.PredictionResult{}, macroapi.RiskIndicator{})
	source.risk = func(ctx context.Context) (macroapi.RiskIndicator, error) {
		<-release
		return macroapi.RiskIndicator{Color: macroapi.ColorRed}, nil
	}

	page := NewPage(source, zerolog.Nop())
	page.Mount(context.Background())

	view := page.View()
	if !view.Loading || view.Chart.Show || view.Chart.Message != LoadingMessage {
		t.Fatalf("unexpected loading view %+v", view)
	}
	if view.Forecast != nil || view.Risk != nil || view.CurrentInflation != "" {
		t.Fatal("cards should be skeletons while loading")
	}
	if page.Settled() {
		t.Fatal("page settled before the last request resolved")
	}

	close(release)
	if err := page.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if page.View().Loading {
		t.Fatal("page should leave the loading state")
	}
}

func TestUnmountDiscardsLateResult(t *testing.T) {
	release := make(chan struct{})
	source := okSource(nil, macroapi.PredictionResult{}, macroapi.RiskIndicator{})
	source.inflation = func(context.Context) ([]macroapi.InflationPoint, error) {
		<-release
		return []macroapi.InflationPoint{{Date: "2024-01-01", InflationYoYPct: 9}}, nil
	}

	page := NewPage(source, zerolog.Nop())
	page.Mount(context.Background())
	page.Unmount()
	close(release)
	if err := page.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	view := page.View()
	if !view.Loading || view.Forecast != nil {
		t.Fatalf("late result should be discarded, got %+v", view)
	}
}

func TestLoadCancelsSiblingsOnFailure(t *testing.T) {
	var cancelled sync.WaitGroup
	cancelled.Add(1)

	source := okSource(nil, macroapi.PredictionResult{}, macroapi.RiskIndicator{})
	source.inflation = func(ctx context.Context) ([]macroapi.InflationPoint, error) {
		<-ctx.Done()
		cancelled.Done()
		return nil, ctx.Err()
	}
	source.risk = func(context.Context) (macroapi.RiskIndicator, error) {
		return macroapi.RiskIndicator{}, errors.New("risk down")
	}

	outcome := Load(context.Background(), source)
	if outcome.OK() {
		t.Fatal("join should fail")
	}
	cancelled.Wait()
}

func TestMountIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	source := okSource(nil, macroapi.PredictionResult{}, macroapi.RiskIndicator{})
	source.inflation = func(context.Context) ([]macroapi.InflationPoint, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	}

	page := NewPage(source, zerolog.Nop())
	page.Mount(context.Background())
	page.Mount(context.Background())
	if err := page.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one inflation request, got %d", calls)
	}
}

type countingObserver struct {
	mu   sync.Mutex
	errs []error
}

func (c *countingObserver) ObserveDashboardLoad(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func TestObserverSeesOutcome(t *testing.T) {
	obs := &countingObserver{}
	mountAndWait(t, okSource(nil, macroapi.PredictionResult{}, macroapi.RiskIndicator{}), WithObserver(obs))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.errs) != 1 || obs.errs[0] != nil {
		t.Fatalf("expected one successful load, got %v", obs.errs)
	}
}

func TestFixed2(t *testing.T) {
	cases := map[float64]string{
		0:      "0.00",
		3.456:  "3.46",
		-0.351: "-0.35",
		12:     "12.00",
		1.005:  "1.00",
		2.675:  "2.67",
		3.485:  "3.48",
		-1.005: "-1.00",
		2.345:  "2.35",
		0.125:  "0.13",
		-0.375: "-0.38",
		-0.001: "-0.00",
	}
	for in, want := range cases {
		if got := Fixed2(in); got != want {
			t.Errorf("Fixed2(%v) = %q, want %q", in, got, want)
		}
	}
}
