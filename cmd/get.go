package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var getArchitect bool

func init() {
	getCmd.Flags().BoolVar(&getArchitect, "architect", false, "Look up an architect instead of an architecture record")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Fetch one record by its primary key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}

		svc, gw, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = gw.Reset() }()

		var rec map[string]any
		if getArchitect {
			rec = svc.ArchitectByID(cmd.Context(), id)
		} else {
			rec = svc.ByID(cmd.Context(), id)
		}
		if rec == nil {
			return fmt.Errorf("no record with id %d", id)
		}
		return printJSON(rec)
	},
}
