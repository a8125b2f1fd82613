package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"macropulse/internal/storage"
)

// Show prints recent snapshots, or recent alerts with opts.Alerts. With
// opts.Since it lists every snapshot in that window oldest first.
func (a *App) Show(ctx context.Context, opts ShowOptions, out io.Writer) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show snapshots")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return printAlerts(out, alerts)
	}

	var snapshots []storage.Snapshot
	if opts.Since > 0 {
		snapshots, err = store.ListSnapshotsBetween(ctx, storage.SnapshotFilter{
			From:   time.Now().UTC().Add(-opts.Since),
			Status: opts.Status,
		})
	} else {
		snapshots, err = store.ListRecentSnapshots(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}

	total, err := store.CountSnapshots(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d stored snapshots\n", len(snapshots), total)
	return printSnapshots(out, snapshots)
}

func printSnapshots(out io.Writer, snapshots []storage.Snapshot) error {
	if len(snapshots) == 0 {
		_, err := fmt.Fprintln(out, "no snapshots found")
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tInflation%\tForecast%\tDirection\tSpread\tRisk\tStatus\tError")
	for _, snap := range snapshots {
		errMsg := ""
		if snap.Error != nil {
			errMsg = sanitizeInline(*snap.Error)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			snap.Bucket.UTC().Format(time.RFC3339),
			snap.LatestInflationPct.StringFixed(2),
			snap.PredictedPct.StringFixed(2),
			snap.Direction,
			snap.YieldSpread.StringFixed(2),
			snap.RiskColor,
			snap.Status,
			errMsg,
		)
	}
	return writer.Flush()
}

func printAlerts(out io.Writer, alerts []storage.AlertRecord) error {
	if len(alerts) == 0 {
		_, err := fmt.Fprintln(out, "no alerts found")
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Sent (UTC)\tSnapshot\tForecast%\tSpread\tRisk\tChannels\tReason")
	for _, rec := range alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.SnapshotTS.UTC().Format(time.RFC3339),
			rec.PredictedPct.StringFixed(2),
			rec.YieldSpread.StringFixed(2),
			rec.RiskColor,
			strings.Join(rec.Channels, ","),
			sanitizeInline(rec.Reason),
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
