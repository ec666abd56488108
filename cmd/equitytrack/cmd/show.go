package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitytrack/config"
	"github.com/rustyeddy/equitytrack/ledger"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the ledger as a table",
	Long: `Print every record of a ledger.

Example:
  equitytrack show --dest account_info.csv`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

var showDest string

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showDest, "dest", "d", "", "ledger destination (defaults to the configured one)")
}

func runShow(cmd *cobra.Command, args []string) error {
	dest := showDest
	if dest == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dest = cfg.Destination
	}
	if dest == "" {
		return fmt.Errorf("no destination given")
	}

	store, err := ledger.Open(dest)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.Rows()
	if err != nil {
		return err
	}
	renderRows(cmd.OutOrStdout(), rows)
	return nil
}

func renderRows(w io.Writer, rows []ledger.Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(ledger.Header)
	table.SetAutoFormatHeaders(false)
	for _, r := range rows {
		table.Append([]string{r.No, r.AccountName, r.AccountNumber, r.InitialBalance, r.CurrentEquity, r.MaxEquity})
	}
	table.SetFooter([]string{"", "", "", "", "Accounts", fmt.Sprint(len(rows))})
	table.Render()
}
