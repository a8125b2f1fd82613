package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"macropulse/internal/dashboard"
)

// Dashboard mounts the dashboard once and prints its cards.
func (a *App) Dashboard(ctx context.Context, out io.Writer) error {
	page := dashboard.NewPage(a.newClient(), a.Logger, dashboard.WithObserver(a.Metrics))
	page.Mount(ctx)
	defer page.Unmount()

	waitCtx, cancel := context.WithTimeout(ctx, a.Config.Server.RenderWait)
	defer cancel()
	if err := page.Wait(waitCtx); err != nil {
		return fmt.Errorf("dashboard did not settle: %w", err)
	}

	return printDashboard(out, page.View())
}

func printDashboard(out io.Writer, view dashboard.View) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Card\tValue\tDetail")
	fmt.Fprintf(writer, "Current Inflation\t%s\tLatest Official Data\n", view.CurrentInflation)

	if f := view.Forecast; f != nil {
		fmt.Fprintf(writer, "AI Forecast\t%s\t%s %s (%s, %s)\n", f.Value, f.Arrow, f.Direction, f.Style, f.Model)
	} else {
		fmt.Fprintln(writer, "AI Forecast\t-\t")
	}
	if r := view.Risk; r != nil {
		fmt.Fprintf(writer, "Recession Risk\t%s\t%s (%s)\n", r.Spread, r.Level, r.Style)
	} else {
		fmt.Fprintln(writer, "Recession Risk\t-\t")
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if !view.Chart.Show {
		_, err := fmt.Fprintln(out, view.Chart.Message)
		return err
	}
	_, err := fmt.Fprintf(out, "\nInflation history: %d points\n", len(view.Chart.Points))
	if err != nil {
		return err
	}
	if n := len(view.Chart.Points); n > 0 {
		first, last := view.Chart.Points[0], view.Chart.Points[n-1]
		_, err = fmt.Fprintf(out, "  first %s\n  last  %s\n", first.Tooltip, last.Tooltip)
	}
	return err
}
