package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"macropulse/internal/alerting"
	"macropulse/internal/config"
	"macropulse/internal/dashboard"
	"macropulse/internal/macroapi"
	"macropulse/internal/scheduler"
	"macropulse/internal/storage"
)

// Alert reasons.
const (
	ReasonRiskRed          = "recession risk red"
	ReasonForecastExceeded = "forecast above threshold"
)

// LoadObserver is told about every joined dashboard load.
type LoadObserver interface {
	ObserveDashboardLoad(err error)
}

// Service orchestrates snapshotting, persistence, and alerting.
type Service struct {
	scheduler  *scheduler.Scheduler
	source     macroapi.DashboardSource
	store      storage.SnapshotStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	observer   LoadObserver
	logger     zerolog.Logger

	threshold decimal.Decimal
	cooldown  time.Duration
	channels  []string
	alertsOn  bool
	locker    storage.AdvisoryLocker
	lockKey   int64

	now       func() time.Time
	lastAlert time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithObserver reports every joined load to obs.
func WithObserver(obs LoadObserver) Option {
	return func(s *Service) { s.observer = obs }
}

// WithClock overrides the wall clock used for cooldowns.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the snapshot service. store and alertStore may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, source macroapi.DashboardSource, store storage.SnapshotStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger, opts ...Option) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.ForecastThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.ForecastThresholdPct)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	s := &Service{
		scheduler:  sched,
		source:     source,
		store:      store,
		alertStore: alertStore,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		threshold:  threshold,
		cooldown:   cfg.Alerting.Cooldown,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run begins the periodic snapshot loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的快照逻辑。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.executeBucket(ctx, bucket)
	return err
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) (storage.Snapshot, error) {
	outcome := dashboard.Load(ctx, s.source)
	if s.observer != nil {
		s.observer.ObserveDashboardLoad(outcome.Err)
	}

	snap := BuildSnapshot(bucket, outcome)
	snap.CreatedAt = s.now()

	if s.store != nil {
		if err := s.store.UpsertSnapshot(ctx, snap); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to upsert snapshot")
		}
	}

	if !outcome.OK() {
		return snap, fmt.Errorf("dashboard load: %w", outcome.Err)
	}

	s.logger.Info().Time("bucket", bucket).
		Str("latest_pct", snap.LatestInflationPct.String()).
		Str("predicted_pct", snap.PredictedPct.String()).
		Str("risk_color", snap.RiskColor).
		Msg("snapshot recorded")

	if s.alertsOn && s.notifier != nil {
		s.maybeAlert(ctx, snap)
	}
	return snap, nil
}

// Evaluate lists the alert reasons that apply to a snapshot. A zero
// threshold disables the forecast rule.
func Evaluate(snap storage.Snapshot, threshold decimal.Decimal) []string {
	if snap.Status != storage.StatusComplete {
		return nil
	}
	var reasons []string
	if snap.RiskColor == macroapi.ColorRed {
		reasons = append(reasons, ReasonRiskRed)
	}
	if threshold.IsPositive() && snap.PredictedPct.GreaterThan(threshold) {
		reasons = append(reasons, ReasonForecastExceeded)
	}
	return reasons
}

// Alert pushes a snapshot through the alerting path, ignoring the enabled
// flag. It reports whether a notification was sent.
func (s *Service) Alert(ctx context.Context, snap storage.Snapshot) (bool, error) {
	if s.notifier == nil {
		return false, fmt.Errorf("notifier not configured")
	}
	return s.maybeAlert(ctx, snap), nil
}

func (s *Service) maybeAlert(ctx context.Context, snap storage.Snapshot) bool {
	reasons := Evaluate(snap, s.threshold)
	if len(reasons) == 0 {
		return false
	}

	if s.inCooldown(ctx) {
		s.logger.Info().Time("bucket", snap.Bucket).Dur("cooldown", s.cooldown).Msg("alert suppressed by cooldown")
		return false
	}

	note := alerting.Notification{
		Bucket:       snap.Bucket,
		Reasons:      reasons,
		LatestPct:    snap.LatestInflationPct,
		PredictedPct: snap.PredictedPct,
		ThresholdPct: s.threshold,
		Direction:    snap.Direction,
		Model:        snap.Model,
		YieldSpread:  snap.YieldSpread,
		RiskLevel:    snap.RiskLevel,
		RiskColor:    snap.RiskColor,
		Channels:     s.channels,
	}

	if s.alertStore != nil {
		record := storage.AlertRecord{
			SnapshotTS:   snap.Bucket,
			Reason:       note.Reason(),
			PredictedPct: snap.PredictedPct,
			YieldSpread:  snap.YieldSpread,
			RiskColor:    snap.RiskColor,
			Channels:     s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("bucket", snap.Bucket).Msg("failed to persist alert record")
		}
	}
	s.lastAlert = s.now()

	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", snap.Bucket).Msg("failed to dispatch alert")
	}
	return true
}

func (s *Service) inCooldown(ctx context.Context) bool {
	if s.cooldown <= 0 {
		return false
	}
	last := s.lastAlert
	if s.alertStore != nil {
		stored, ok, err := s.alertStore.LastAlertAt(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read last alert time")
		} else if ok && stored.After(last) {
			last = stored
		}
	}
	if last.IsZero() {
		return false
	}
	return s.now().Sub(last) < s.cooldown
}

// BuildSnapshot converts a joined load into a storable snapshot.
func BuildSnapshot(bucket time.Time, outcome dashboard.Outcome) storage.Snapshot {
	if !outcome.OK() {
		msg := outcome.Err.Error()
		return storage.Snapshot{
			Bucket: bucket,
			Status: storage.StatusErrored,
			Error:  &msg,
		}
	}

	data := outcome.Data
	snap := storage.Snapshot{
		Bucket:        bucket,
		PredictedPct:  decimal.NewFromFloat(data.Prediction.PredictedNextInflation),
		Direction:     data.Prediction.Direction,
		Model:         data.Prediction.Model,
		YieldSpread:   decimal.NewFromFloat(data.Risk.YieldSpread),
		RiskLevel:     data.Risk.Level,
		RiskColor:     data.Risk.Color,
		HistoryPoints: len(data.History),
		Status:        storage.StatusComplete,
	}
	if n := len(data.History); n > 0 {
		snap.LatestInflationPct = decimal.NewFromFloat(data.History[n-1].InflationYoYPct)
	}
	return snap
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
