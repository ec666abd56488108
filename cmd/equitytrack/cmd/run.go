package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitytrack/ledger"
	"github.com/rustyeddy/equitytrack/reconcile"
	"github.com/rustyeddy/equitytrack/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile the ledger on a fixed interval until interrupted",
	Long: `Run the reconciliation daemon.

The first cycle runs as soon as the destination is configured, then once per
interval until SIGINT or SIGTERM. A failed cycle is logged and retried on the
next tick.

Example:
  equitytrack run -c equitytrack.yaml --dest account_info.csv`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runDest string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runDest, "dest", "d", "", "ledger destination (overrides config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()
	if runDest != "" {
		cfg.Destination = runDest
	}

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	interval, err := cfg.PollInterval()
	if err != nil {
		return err
	}

	stores := ledger.NewRegistry()
	defer stores.Close()

	r := reconcile.New(src, stores,
		reconcile.WithExclude(cfg.Exclude...),
		reconcile.WithLogger(log),
	)
	sched := scheduler.New(r, interval, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("interval", interval).Info("equitytrack starting")

	if cfg.Destination == "" {
		log.Warn("no destination configured, nothing to do until one is set")
		<-ctx.Done()
		return nil
	}

	if err := sched.Run(ctx, cfg.Destination); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	log.Info("equitytrack stopped")
	return nil
}
