package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot statuses.
const (
	StatusComplete = "complete"
	StatusErrored  = "errored"
)

// Snapshot is one persisted dashboard observation.
type Snapshot struct {
	Bucket             time.Time
	LatestInflationPct decimal.Decimal
	PredictedPct       decimal.Decimal
	Direction          string
	Model              string
	YieldSpread        decimal.Decimal
	RiskLevel          string
	RiskColor          string
	HistoryPoints      int
	Status             string
	Error              *string
	CreatedAt          time.Time
}

// AlertRecord captures an emitted alert for cooldown/auditing.
type AlertRecord struct {
	ID           int64
	SnapshotTS   time.Time
	Reason       string
	PredictedPct decimal.Decimal
	YieldSpread  decimal.Decimal
	RiskColor    string
	Channels     []string
	CreatedAt    time.Time
}
