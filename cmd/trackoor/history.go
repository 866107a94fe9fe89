package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/trackoor/pkg/config"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <test-id>",
	Short: "Show the recent results of one test, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit",
		config.DefaultHistoryLimit, "maximum number of entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	testID := args[0]

	trk, _, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = trk.Stop() }()

	history, err := trk.Store().TestHistory(ctx, testID, historyLimit)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	if len(history) == 0 {
		fmt.Printf("No recorded results for %s.\n", testID)

		return nil
	}

	fmt.Printf("%s recent history:\n", testID)

	for _, entry := range history {
		fmt.Printf("  %s - %s (duration: %.2fs)\n",
			entry.RecordedAt.Format("2006-01-02 15:04:05"),
			entry.Status,
			entry.Duration,
		)

		if entry.ErrorMessage != nil {
			fmt.Printf("    Error: %s\n", *entry.ErrorMessage)
		}
	}

	return nil
}
