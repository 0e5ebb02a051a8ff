package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pricewatch/matcher"
)

var matchCmd = &cobra.Command{
	Use:   "match <text>",
	Short: "Show how a scraped name resolves against the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := buildCatalog(cfg)
		if err != nil {
			return err
		}
		printMatch(cmd.OutOrStdout(), catalog, strings.Join(args, " "))
		return nil
	},
}

func printMatch(w io.Writer, catalog *matcher.Catalog, text string) {
	fmt.Fprintf(w, "normalized: %q\n", matcher.NormalizeCompact(text))

	if product, ok := catalog.ResolveProduct(text); ok {
		fmt.Fprintf(w, "product:    %s\n", product)
	} else if product, ok := catalog.LookupProduct(text); ok {
		fmt.Fprintf(w, "product:    %s (chat lookup only)\n", product)
	} else {
		fmt.Fprintln(w, "product:    -")
	}

	if retailer, ok := catalog.ResolveRetailer(text); ok {
		fmt.Fprintf(w, "retailer:   %s\n", retailer)
	} else {
		fmt.Fprintln(w, "retailer:   -")
	}
}
