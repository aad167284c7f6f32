package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openarch-dev/archbase/api"
)

var (
	searchPage       int
	searchLimit      int
	searchSortBy     string
	searchSortDir    string
	searchTags       []string
	searchPrefecture string
	searchCategory   string
	searchYearFrom   int
	searchYearTo     int
)

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Page number (1-based)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 24, "Results per page")
	searchCmd.Flags().StringVar(&searchSortBy, "sort", "", "Sort key (title, architect, year, prefecture, category)")
	searchCmd.Flags().StringVar(&searchSortDir, "dir", "asc", "Sort direction (asc or desc)")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "Restrict to records carrying any of these tags")
	searchCmd.Flags().StringVar(&searchPrefecture, "prefecture", "", "Filter by prefecture")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "Filter by category")
	searchCmd.Flags().IntVar(&searchYearFrom, "year-from", 0, "Earliest completion year")
	searchCmd.Flags().IntVar(&searchYearTo, "year-to", 0, "Latest completion year")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search the catalogue with optional free text, filters, and sorting",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, gw, err := newService()
		if err != nil {
			return err
		}
		defer func() { _ = gw.Reset() }()

		req := api.SearchRequest{
			Page:     searchPage,
			Limit:    searchLimit,
			SortBy:   searchSortBy,
			SortDir:  api.SortDirection(searchSortDir),
			Tags:     searchTags,
			YearFrom: searchYearFrom,
			YearTo:   searchYearTo,
		}
		if len(args) == 1 {
			req.Query = args[0]
		}
		filters := make(map[string]string)
		if searchPrefecture != "" {
			filters["prefecture"] = searchPrefecture
		}
		if searchCategory != "" {
			filters["category"] = searchCategory
		}
		if len(filters) > 0 {
			req.Filters = filters
		}

		return printJSON(svc.Search(cmd.Context(), req))
	},
}
