package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one sweep over the catalog and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		report := p.sweeper.RunSweep(ctx)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sweep %s: %d products, %d failed, %d observations, %d changes in %s\n",
			report.ID, report.Products, len(report.Failed), report.Observations, report.Changes(), report.Duration.Round(time.Millisecond))
		for _, product := range report.Failed {
			fmt.Fprintf(out, "  failed: %s\n", product)
		}
		return nil
	},
}
