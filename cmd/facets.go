package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(facetsCmd)
	rootCmd.AddCommand(valuesCmd)
}

var facetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "List tag facets with record counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, gw, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = gw.Reset() }()

		return printJSON(svc.FacetCounts(cmd.Context()))
	},
}

var valuesCmd = &cobra.Command{
	Use:   "values [column]",
	Short: "List the distinct values of an allow-listed column (prefecture, category, architect)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, gw, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = gw.Reset() }()

		return printJSON(svc.DistinctValues(cmd.Context(), args[0]))
	},
}
