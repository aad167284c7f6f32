package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Initialize the configured backend and report which path succeeded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, gw, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = gw.Reset() }()

		backend, err := gw.Initialize(cmd.Context())
		if err != nil {
			return fmt.Errorf("initialization failed (state %s): %w", gw.Status(), err)
		}
		fmt.Printf("Backend ready: %s (state %s)\n", backend.Kind, gw.Status())
		return nil
	},
}
