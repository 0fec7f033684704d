package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform a single evaluation run and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := getApp().RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		encoded, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	},
}
