// Package phillips owns the Phillips-curve panel: the scatter points and the
// single-field inflation forecaster.
package phillips

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"macropulse/internal/macroapi"
)

var (
	// ErrInvalidInput is returned for a non-empty value that is not a finite number.
	ErrInvalidInput = errors.New("phillips: unemployment rate must be a number")
	// ErrSuperseded is returned when a newer submission replaced this one.
	ErrSuperseded = errors.New("phillips: superseded by a newer submission")
)

// Prediction outcomes reported to the observer.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// PredictionObserver is told about every settled submission.
type PredictionObserver interface {
	ObservePrediction(outcome string)
}

// Option configures a Panel.
type Option func(*Panel)

// WithObserver reports submission outcomes to obs.
func WithObserver(obs PredictionObserver) Option {
	return func(p *Panel) {
		p.observer = obs
	}
}

// Panel holds the scatter points and the latest prediction.
//
// Submissions are serialised by cancellation: a new Submit cancels the
// request still in flight, and only the most recent submission may write the
// prediction slot.
type Panel struct {
	source   macroapi.PhillipsSource
	observer PredictionObserver
	logger   zerolog.Logger

	mu         sync.Mutex
	started    bool
	points     []macroapi.PhillipsPoint
	prediction *float64
	generation uint64
	cancel     context.CancelFunc
	loaded     chan struct{}
}

// NewPanel builds an unmounted panel.
func NewPanel(source macroapi.PhillipsSource, logger zerolog.Logger, opts ...Option) *Panel {
	p := &Panel{
		source: source,
		logger: logger.With().Str("component", "phillips").Logger(),
		loaded: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mount loads the scatter points once. Failures are only logged.
func (p *Panel) Mount(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.loaded)

		points, err := p.source.FetchPhillipsCurve(ctx)
		if err != nil {
			p.logger.Error().Err(err).Msg("failed to fetch phillips curve")
			return
		}

		p.mu.Lock()
		p.points = points
		p.mu.Unlock()
		p.logger.Debug().Int("points", len(points)).Msg("phillips curve loaded")
	}()
}

// WaitLoaded blocks until the initial load settles or ctx is done.
func (p *Panel) WaitLoaded(ctx context.Context) error {
	select {
	case <-p.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit runs one prediction for the raw form input. An empty input is a
// no-op. Errors are logged here; callers are not expected to show them.
func (p *Panel) Submit(ctx context.Context, input string) error {
	sub, err := p.Begin(ctx, input)
	if err != nil || sub == nil {
		return err
	}
	_, err = sub.Run()
	return err
}

// Submission is a prediction that has claimed its place in submission order
// but has not been sent yet.
type Submission struct {
	panel  *Panel
	parent context.Context
	ctx    context.Context
	gen    uint64
	rate   float64
}

// Begin validates input and orders the submission: it cancels the request
// still in flight and makes this one the newest. It returns a nil Submission
// for empty input. Callers that run submissions concurrently must call Begin
// in input order and Run the result exactly once.
func (p *Panel) Begin(ctx context.Context, input string) (*Submission, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	rate, err := strconv.ParseFloat(input, 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
		p.logger.Warn().Str("input", input).Msg("ignoring non-numeric unemployment rate")
		return nil, ErrInvalidInput
	}

	reqCtx, gen := p.begin(ctx)
	return &Submission{panel: p, parent: ctx, ctx: reqCtx, gen: gen, rate: rate}, nil
}

// Rate is the parsed unemployment rate.
func (s *Submission) Rate() float64 {
	return s.rate
}

// Run sends the request and stores the result if no newer submission began
// meanwhile. It returns the predicted inflation on success.
func (s *Submission) Run() (float64, error) {
	p := s.panel
	defer p.finish(s.gen)

	predicted, err := p.source.PredictInflation(s.ctx, s.rate)
	if err != nil {
		if s.ctx.Err() != nil && s.parent.Err() == nil {
			p.logger.Debug().Float64("unemployment_rate", s.rate).Msg("prediction cancelled by newer submission")
			p.observe(OutcomeCancelled)
			return 0, ErrSuperseded
		}
		p.logger.Error().Err(err).Float64("unemployment_rate", s.rate).Msg("prediction failed")
		p.observe(OutcomeError)
		return 0, fmt.Errorf("prediction request failed: %w", err)
	}

	p.mu.Lock()
	if s.gen != p.generation {
		p.mu.Unlock()
		p.logger.Debug().Float64("unemployment_rate", s.rate).Msg("late prediction dropped for newer submission")
		p.observe(OutcomeCancelled)
		return 0, ErrSuperseded
	}
	p.prediction = &predicted
	p.mu.Unlock()

	p.logger.Info().Float64("unemployment_rate", s.rate).Float64("predicted_inflation", predicted).Msg("prediction received")
	p.observe(OutcomeOK)
	return predicted, nil
}

func (p *Panel) begin(ctx context.Context) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	p.generation++
	p.cancel = cancel
	return reqCtx, p.generation
}

func (p *Panel) finish(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen == p.generation && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Panel) observe(outcome string) {
	if p.observer != nil {
		p.observer.ObservePrediction(outcome)
	}
}

// View snapshots the panel state.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return buildView(p.points, p.prediction)
}
