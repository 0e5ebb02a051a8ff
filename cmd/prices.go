package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pricewatch/notifier"
)

var pricesCmd = &cobra.Command{
	Use:   "prices <product>",
	Short: "Print the latest known prices of a catalog product",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateStore(); err != nil {
			return err
		}
		catalog, err := buildCatalog(cfg)
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		product, ok := catalog.LookupProduct(query)
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), notifier.MsgNotRecognized)
			return nil
		}

		db, repo, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := repo.FindAll(cmd.Context(), product)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), notifier.NewRenderer(cfg.Currency.Symbol).RenderQuery(product, records))
		return nil
	},
}
