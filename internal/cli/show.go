package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"churn-risk-alerts/internal/app"
)

var (
	showLimit      int
	showFailedOnly bool
	showKind       string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent alert history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:      showLimit,
			FailedOnly: showFailedOnly,
			Kind:       showKind,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of alerts to display")
	showCmd.Flags().BoolVar(&showFailedOnly, "failed", false, "Only show failed deliveries")
	showCmd.Flags().StringVar(&showKind, "kind", "", "Filter by alert kind (HIGH_RISK, RISK_INCREASE, SUMMARY)")
}
