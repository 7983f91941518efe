package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"family-fund-backend/internal/logger"
	"family-fund-backend/internal/money"
	"family-fund-backend/internal/services/ledger"
)

var flagHistoryLimit int

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the fund pool balance",
	RunE:  runBalance,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent ledger movements",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Number of entries")

	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(historyCmd)
}

func runBalance(cmd *cobra.Command, _ []string) error {
	_, db, log, err := setup()
	if err != nil {
		return err
	}
	balance, err := ledger.NewStore(db, logger.Component(log, "ledger")).Balance(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(money.Format(balance))
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	_, db, log, err := setup()
	if err != nil {
		return err
	}
	entries, err := ledger.NewStore(db, logger.Component(log, "ledger")).History(cmd.Context(), flagHistoryLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tCHANGES")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Action, string(e.Changes))
	}
	return w.Flush()
}
