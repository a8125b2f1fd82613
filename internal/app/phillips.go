package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"macropulse/internal/phillips"
)

// Phillips mounts the panel, prints the scatter summary and then submits one
// prediction per input line. A line read while an earlier prediction is still
// in flight supersedes it.
func (a *App) Phillips(ctx context.Context, in io.Reader, out io.Writer) error {
	panel := phillips.NewPanel(a.newClient(), a.Logger, phillips.WithObserver(a.Metrics))
	panel.Mount(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, a.Config.Server.RenderWait)
	err := panel.WaitLoaded(waitCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("phillips curve did not load: %w", err)
	}

	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	printf("%s\n", summarizeScatter(panel.View()))
	printf("Enter an unemployment rate (%%) per line, Ctrl-D to quit.\n")

	var wg sync.WaitGroup
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		input := scanner.Text()
		sub, err := panel.Begin(ctx, input)
		if errors.Is(err, phillips.ErrInvalidInput) {
			printf("not a number: %q\n", input)
			continue
		}
		if sub == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			predicted, err := sub.Run()
			if err != nil {
				return
			}
			pred := phillips.NewPrediction(predicted)
			printf("Inflation: %s [%s]\n", pred.Value, pred.Style)
		}()
	}
	wg.Wait()
	return scanner.Err()
}

func summarizeScatter(view phillips.View) string {
	if len(view.Points) == 0 {
		return "Phillips curve: no data points"
	}
	minU, maxU := view.Points[0].Unemployment, view.Points[0].Unemployment
	minI, maxI := view.Points[0].Inflation, view.Points[0].Inflation
	for _, p := range view.Points[1:] {
		minU, maxU = min(minU, p.Unemployment), max(maxU, p.Unemployment)
		minI, maxI = min(minI, p.Inflation), max(maxI, p.Inflation)
	}
	return fmt.Sprintf("Phillips curve: %d points, unemployment %.1f%%..%.1f%%, inflation %.1f%%..%.1f%%",
		len(view.Points), minU, maxU, minI, maxI)
}

// Predict runs a single scenario prediction.
func (a *App) Predict(ctx context.Context, unemploymentRate float64, out io.Writer) error {
	predicted, err := a.newClient().PredictInflation(ctx, unemploymentRate)
	a.observePrediction(err)
	if err != nil {
		return err
	}
	pred := phillips.NewPrediction(predicted)
	_, err = fmt.Fprintf(out, "Unemployment %g%% -> Inflation %s [%s]\n", unemploymentRate, pred.Value, pred.Style)
	return err
}

func (a *App) observePrediction(err error) {
	if err != nil {
		a.Metrics.ObservePrediction(phillips.OutcomeError)
		return
	}
	a.Metrics.ObservePrediction(phillips.OutcomeOK)
}
