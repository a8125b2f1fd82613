package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertSnapshotSQL = `INSERT INTO snapshots (
        bucket_ts,
        latest_inflation_pct,
        predicted_pct,
        direction,
        model,
        yield_spread,
        risk_level,
        risk_color,
        history_points,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET
        latest_inflation_pct = EXCLUDED.latest_inflation_pct,
        predicted_pct        = EXCLUDED.predicted_pct,
        direction            = EXCLUDED.direction,
        model                = EXCLUDED.model,
        yield_spread         = EXCLUDED.yield_spread,
        risk_level           = EXCLUDED.risk_level,
        risk_color           = EXCLUDED.risk_color,
        history_points       = EXCLUDED.history_points,
        status               = EXCLUDED.status,
        error                = EXCLUDED.error;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM snapshots;`

	insertAlertSQL = `INSERT INTO alerts (
        snapshot_ts,
        reason,
        predicted_pct,
        yield_spread,
        risk_color,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (snapshot_ts) DO UPDATE
    SET reason        = EXCLUDED.reason,
        predicted_pct = EXCLUDED.predicted_pct,
        yield_spread  = EXCLUDED.yield_spread,
        risk_color    = EXCLUDED.risk_color,
        channels      = EXCLUDED.channels
    RETURNING id, snapshot_ts, reason, predicted_pct, yield_spread, risk_color, channels, created_at;`

	lastAlertAtSQL = `SELECT MAX(created_at) FROM alerts;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	snapshotColumns = []string{
		"bucket_ts",
		"latest_inflation_pct::text",
		"predicted_pct::text",
		"direction",
		"model",
		"yield_spread::text",
		"risk_level",
		"risk_color",
		"history_points",
		"status",
		"error",
		"created_at",
	}

	alertColumns = []string{
		"id",
		"snapshot_ts",
		"reason",
		"predicted_pct::text",
		"yield_spread::text",
		"risk_color",
		"channels",
		"created_at",
	}
)

// SnapshotStore defines operations for snapshot persistence.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snapshot Snapshot) error
	ListSnapshotsBetween(ctx context.Context, filter SnapshotFilter) ([]Snapshot, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	LastAlertAt(ctx context.Context) (time.Time, bool, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// SnapshotFilter narrows ListSnapshotsBetween. Zero From/To leave that side open.
type SnapshotFilter struct {
	From   time.Time
	To     time.Time
	Status string
}

// Store aggregates access to snapshots and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSnapshot persists or updates a snapshot.
func (s *Store) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if snap.Error != nil {
		errMsg = *snap.Error
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snap.Bucket,
		snap.LatestInflationPct.String(),
		snap.PredictedPct.String(),
		snap.Direction,
		snap.Model,
		snap.YieldSpread.String(),
		snap.RiskLevel,
		snap.RiskColor,
		snap.HistoryPoints,
		snap.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

func listSnapshotsQuery(filter SnapshotFilter) (string, []interface{}, error) {
	q := psql.Select(snapshotColumns...).From("snapshots")
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"bucket_ts": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.Lt{"bucket_ts": filter.To})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	return q.OrderBy("bucket_ts").ToSql()
}

func recentSnapshotsQuery(limit int) (string, []interface{}, error) {
	return psql.Select(snapshotColumns...).
		From("snapshots").
		OrderBy("bucket_ts DESC").
		Limit(uint64(limit)).
		ToSql()
}

func recentAlertsQuery(limit int) (string, []interface{}, error) {
	return psql.Select(alertColumns...).
		From("alerts").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
}

// ListSnapshotsBetween lists snapshots matching filter in chronological order.
func (s *Store) ListSnapshotsBetween(ctx context.Context, filter SnapshotFilter) ([]Snapshot, error) {
	query, args, err := listSnapshotsQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build snapshots query: %w", err)
	}
	return s.querySnapshots(ctx, query, args, 0)
}

// ListRecentSnapshots lists the most recent snapshots ordered by descending bucket.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	query, args, err := recentSnapshotsQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("build recent snapshots query: %w", err)
	}
	return s.querySnapshots(ctx, query, args, limit)
}

func (s *Store) querySnapshots(ctx context.Context, query string, args []interface{}, capacity int) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots: %w", queryErr)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, capacity)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snapshots = append(snapshots, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

// CountSnapshots counts stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SnapshotTS,
		alert.Reason,
		alert.PredictedPct.String(),
		alert.YieldSpread.String(),
		alert.RiskColor,
		alert.Channels,
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query, args, err := recentAlertsQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("build recent alerts query: %w", err)
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// LastAlertAt returns the creation time of the newest alert, if any.
func (s *Store) LastAlertAt(ctx context.Context) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}

	var last *time.Time
	if scanErr := pool.QueryRow(ctx, lastAlertAtSQL).Scan(&last); scanErr != nil {
		return time.Time{}, false, fmt.Errorf("last alert: %w", scanErr)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var rec AlertRecord
	var predictedStr, spreadStr string
	if err := row.Scan(
		&rec.ID,
		&rec.SnapshotTS,
		&rec.Reason,
		&predictedStr,
		&spreadStr,
		&rec.RiskColor,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var convErr error
	rec.PredictedPct, convErr = decimal.NewFromString(predictedStr)
	if convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse predicted pct: %w", convErr)
	}
	rec.YieldSpread, convErr = decimal.NewFromString(spreadStr)
	if convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse yield spread: %w", convErr)
	}
	return rec, nil
}

func scanSnapshot(rows pgx.Rows) (Snapshot, error) {
	var (
		bucket       time.Time
		latestStr    string
		predictedStr string
		direction    string
		model        string
		spreadStr    string
		riskLevel    string
		riskColor    string
		points       int32
		status       string
		errMsg       sql.NullString
		createdAt    time.Time
	)

	if err := rows.Scan(
		&bucket,
		&latestStr,
		&predictedStr,
		&direction,
		&model,
		&spreadStr,
		&riskLevel,
		&riskColor,
		&points,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return Snapshot{}, err
	}

	latest, err := decimal.NewFromString(latestStr)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse latest inflation: %w", err)
	}
	predicted, err := decimal.NewFromString(predictedStr)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse predicted pct: %w", err)
	}
	spread, err := decimal.NewFromString(spreadStr)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse yield spread: %w", err)
	}

	snap := Snapshot{
		Bucket:             bucket,
		LatestInflationPct: latest,
		PredictedPct:       predicted,
		Direction:          direction,
		Model:              model,
		YieldSpread:        spread,
		RiskLevel:          riskLevel,
		RiskColor:          riskColor,
		HistoryPoints:      int(points),
		Status:             status,
		CreatedAt:          createdAt,
	}
	if errMsg.Valid {
		msg := errMsg.String
		snap.Error = &msg
	}
	return snap, nil
}
