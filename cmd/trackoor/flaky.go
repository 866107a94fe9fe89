package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/trackoor/pkg/config"
)

var (
	flakyMinRuns        int
	flakyMinFailureRate float64
)

var flakyCmd = &cobra.Command{
	Use:   "flaky",
	Short: "List flaky tests sorted by failure rate",
	RunE:  runFlaky,
}

func init() {
	rootCmd.AddCommand(flakyCmd)
	flakyCmd.Flags().IntVar(&flakyMinRuns, "min-runs",
		config.DefaultFlakyMinRuns,
		"minimum recorded results before a test can be flaky")
	flakyCmd.Flags().Float64Var(&flakyMinFailureRate, "min-failure-rate",
		config.DefaultFlakyMinFailureRate,
		"failure-rate threshold for flaky classification")
}

func runFlaky(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	trk, _, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = trk.Stop() }()

	flaky, err := trk.Engine().FlakyTests(ctx, flakyMinRuns, flakyMinFailureRate)
	if err != nil {
		return fmt.Errorf("detecting flaky tests: %w", err)
	}

	if len(flaky) == 0 {
		fmt.Println("No flaky tests detected.")

		return nil
	}

	fmt.Println("Tests that sometimes pass and sometimes fail:")

	for _, test := range flaky {
		fmt.Printf("  %s: %.1f%% failure rate (%d of %d runs failed)\n",
			test.TestID,
			test.FailureRate*100,
			test.Failures,
			test.TotalRuns,
		)
	}

	return nil
}
