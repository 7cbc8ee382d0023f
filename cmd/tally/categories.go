package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nmoretto/tally/internal/cli"
)

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the category whitelist",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cli.TitleStyle.Render("Categories"))
			for _, category := range loadCategories() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", category)
			}
		},
	}
}
