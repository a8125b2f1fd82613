package cli

import (
	"errors"
	"math"

	"github.com/spf13/cobra"
)

var predictUnemployment float64

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Load the dashboard once and print its cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Dashboard(cmd.Context(), cmd.OutOrStdout())
	},
}

var phillipsCmd = &cobra.Command{
	Use:   "phillips",
	Short: "Show the Phillips curve and predict inflation from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Phillips(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict inflation for one unemployment rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("unemployment") {
			return errors.New("--unemployment must be provided")
		}
		if math.IsNaN(predictUnemployment) || math.IsInf(predictUnemployment, 0) {
			return errors.New("--unemployment must be a finite number")
		}
		return getApp().Predict(cmd.Context(), predictUnemployment, cmd.OutOrStdout())
	},
}

func init() {
	predictCmd.Flags().Float64Var(&predictUnemployment, "unemployment", 0, "Unemployment rate in percent")
}
