package cli

import (
	"github.com/spf13/cobra"

	"churn-risk-alerts/internal/app"
)

var (
	simulateCustomerID  int64
	simulateProbability float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send a synthetic high-risk alert through the configured webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			CustomerID:  simulateCustomerID,
			Probability: simulateProbability,
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateCustomerID, "customer-id", 0, "Existing customer to reference in the alert")
	simulateCmd.Flags().Float64Var(&simulateProbability, "probability", 0, "Churn probability to report (defaults to the high-risk threshold)")
}
