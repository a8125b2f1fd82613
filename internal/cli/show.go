package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"macropulse/internal/app"
)

var (
	showLimit  int
	showAlerts bool
	showSince  time.Duration
	showStatus string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent dashboard snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			Alerts: showAlerts,
			Since:  showSince,
			Status: showStatus,
		}

		return getApp().Show(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Show sent alerts instead of snapshots")
	showCmd.Flags().DurationVar(&showSince, "since", 0, "List all snapshots newer than this duration instead of the latest --limit")
	showCmd.Flags().StringVar(&showStatus, "status", "", "With --since, only snapshots with this status (complete/errored)")
}
