package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"macropulse/internal/app"
	"macropulse/internal/macroapi"
)

var (
	simulateForecast  float64
	simulateDirection string
	simulateSpread    float64
	simulateLevel     string
	simulateColor     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次宏观快照并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch simulateColor {
		case macroapi.ColorRed, macroapi.ColorYellow, macroapi.ColorGreen:
		default:
			return errors.New("--color 必须是 red、yellow 或 green")
		}

		opts := app.SimulateOptions{
			Forecast:  simulateForecast,
			Direction: simulateDirection,
			Spread:    simulateSpread,
			Level:     simulateLevel,
			Color:     simulateColor,
		}
		return getApp().SimulateAlert(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateForecast, "forecast", 0, "预测通胀 (%)")
	simulateCmd.Flags().StringVar(&simulateDirection, "direction", macroapi.DirectionUp, "预测方向 UP/DOWN")
	simulateCmd.Flags().Float64Var(&simulateSpread, "spread", 0, "10Y-2Y 利差")
	simulateCmd.Flags().StringVar(&simulateLevel, "level", "Simulated", "风险等级描述")
	simulateCmd.Flags().StringVar(&simulateColor, "color", macroapi.ColorGreen, "风险颜色 red/yellow/green")
}
