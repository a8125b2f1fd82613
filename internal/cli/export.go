package cli

import (
	"github.com/spf13/cobra"

	"macropulse/internal/app"
)

var (
	exportCSVPath      string
	exportPNGPath      string
	exportPhillipsPath string
	exportMaxPoints    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the inflation history as CSV/PNG and the Phillips curve as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath:         exportCSVPath,
			PNGPath:         exportPNGPath,
			PhillipsPNGPath: exportPhillipsPath,
			MaxPoints:       exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write the inflation history CSV")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write the inflation chart PNG")
	exportCmd.Flags().StringVar(&exportPhillipsPath, "phillips-png", "", "Path to write the Phillips scatter PNG")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum history points to export (defaults to config)")
}
