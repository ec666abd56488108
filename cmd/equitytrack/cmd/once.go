package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitytrack/ledger"
	"github.com/rustyeddy/equitytrack/reconcile"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single reconciliation cycle",
	Long: `Run exactly one reconciliation cycle and print what changed.

Example:
  equitytrack once -c equitytrack.yaml --dest account_info.csv`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

var onceDest string

func init() {
	rootCmd.AddCommand(onceCmd)
	onceCmd.Flags().StringVarP(&onceDest, "dest", "d", "", "ledger destination (overrides config)")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()
	if onceDest != "" {
		cfg.Destination = onceDest
	}

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	stores := ledger.NewRegistry()
	defer stores.Close()

	r := reconcile.New(src, stores,
		reconcile.WithExclude(cfg.Exclude...),
		reconcile.WithLogger(log),
	)

	rep, err := r.RunCycle(context.Background(), cfg.Destination)
	printReport(cmd.OutOrStdout(), rep)
	if errors.Is(err, reconcile.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cycle: %w", err)
	}
	return nil
}

func printReport(w io.Writer, rep reconcile.Report) {
	if rep.Skipped {
		fmt.Fprintln(w, "No destination configured, nothing done.")
		return
	}
	fmt.Fprintf(w, "Cycle %s -> %s\n", rep.CycleID, rep.Destination)
	fmt.Fprintf(w, "  Accounts seen: %d\n", rep.Seen)
	for _, rec := range rep.Appended {
		fmt.Fprintf(w, "  + #%d %s %s\n", rec.Seq, rec.AccountID, rec.InitialBalance)
	}
	fmt.Fprintf(w, "  Updated: %d\n", len(rep.Updated))
	for _, m := range rep.Malformed {
		fmt.Fprintf(w, "  ! %v\n", m)
	}
	for id, err := range rep.Failed {
		fmt.Fprintf(w, "  x %s: %v\n", id, err)
	}
}
