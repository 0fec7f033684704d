package cli

import (
	"github.com/spf13/cobra"

	"churn-risk-alerts/internal/app"
)

var (
	importFile   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the customer population from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ImportOptions{
			Path:   importFile,
			DryRun: importDryRun,
		}

		return getApp().ImportCustomers(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to the customer CSV file")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and validate without writing")
}
