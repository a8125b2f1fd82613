package dashboard

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"macropulse/internal/macroapi"
)

// ErrorMessage is the only failure text the dashboard ever shows.
const ErrorMessage = "Failed to connect to the Live API."

// LoadObserver is told about every settled join.
type LoadObserver interface {
	ObserveDashboardLoad(err error)
}

// Option configures a Page.
type Option func(*Page)

// WithObserver reports join outcomes to obs.
func WithObserver(obs LoadObserver) Option {
	return func(p *Page) {
		p.observer = obs
	}
}

// Page is one mounted dashboard. Its state starts empty, is filled once by
// the joined load and never merged afterwards.
type Page struct {
	source   macroapi.DashboardSource
	observer LoadObserver
	logger   zerolog.Logger

	mu         sync.Mutex
	started    bool
	detached   bool
	loading    bool
	errMsg     string
	history    []macroapi.InflationPoint
	prediction *macroapi.PredictionResult
	risk       *macroapi.RiskIndicator
	done       chan struct{}
}

// NewPage builds an unmounted page.
func NewPage(source macroapi.DashboardSource, logger zerolog.Logger, opts ...Option) *Page {
	p := &Page{
		source:  source,
		logger:  logger.With().Str("component", "dashboard").Logger(),
		loading: true,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mount starts the joined load. Calling it again is a no-op.
func (p *Page) Mount(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		p.apply(Load(ctx, p.source))
	}()
}

// Unmount detaches the page; a load that settles afterwards is discarded.
func (p *Page) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detached = true
}

// Wait blocks until the load settles or ctx is done.
func (p *Page) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settled reports whether the load finished.
func (p *Page) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Page) apply(outcome Outcome) {
	if p.observer != nil {
		p.observer.ObserveDashboardLoad(outcome.Err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.detached {
		p.logger.Debug().Bool("ok", outcome.OK()).Msg("page unmounted; discarding load result")
		return
	}

	if !outcome.OK() {
		p.logger.Error().Err(outcome.Err).Msg("dashboard load failed")
		p.errMsg = ErrorMessage
	} else {
		p.history = outcome.Data.History
		prediction := outcome.Data.Prediction
		risk := outcome.Data.Risk
		p.prediction = &prediction
		p.risk = &risk
		p.logger.Info().Int("points", len(p.history)).Msg("dashboard loaded")
	}
	p.loading = false
}

// View snapshots the current state into a render model.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return buildView(p.loading, p.errMsg, p.history, p.prediction, p.risk)
}
