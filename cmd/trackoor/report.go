package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/trackoor/pkg/report"
)

var (
	reportFormat string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the tracking summary for all known tests",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportFormat, "format", "text",
		`output format: "text", "markdown", "json" or "yaml"`)
	reportCmd.Flags().StringVar(&reportOutput, "output", "",
		"write the report to a file instead of stdout")
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	trk, _, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = trk.Stop() }()

	reports, err := trk.BuildReport(ctx)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	var out string

	switch reportFormat {
	case "text":
		out = renderTextReport(reports)
	case "markdown":
		out = report.GenerateMarkdown(reports)
	case "json":
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}

		out = string(data) + "\n"
	case "yaml":
		data, err := yaml.Marshal(reports)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}

		out = string(data)
	default:
		return fmt.Errorf("unsupported format %q", reportFormat)
	}

	if reportOutput != "" {
		if err := os.WriteFile(reportOutput, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing report file: %w", err)
		}

		log.WithField("path", reportOutput).Info("Report written")

		return nil
	}

	fmt.Print(out)

	return nil
}

// renderTextReport prints per-test counts, a flaky analysis section and
// the recent history of tests that failed lately.
func renderTextReport(reports map[string]report.TestReport) string {
	var sb strings.Builder

	ids := make([]string, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	sb.WriteString("=== Test Tracking Summary ===\n")

	for _, id := range ids {
		r := reports[id]

		fmt.Fprintf(&sb, "\n%s:\n", id)
		fmt.Fprintf(&sb, "  Total runs: %d\n", r.Analytics.TotalRuns)
		fmt.Fprintf(&sb, "  Passes: %d\n", r.Passes)
		fmt.Fprintf(&sb, "  Failures: %d\n", r.Failures)
		fmt.Fprintf(&sb, "  Skips: %d\n", r.Skips)
		fmt.Fprintf(&sb, "  Failure rate: %.2f%%\n", r.FailureRate*100)

		if r.LastFailure != nil {
			fmt.Fprintf(&sb, "  Last failure: %s (%s ago)\n",
				r.LastFailure.Timestamp.Format(time.RFC3339),
				units.HumanDuration(time.Since(r.LastFailure.Timestamp)))

			if len(r.LastFailure.Traceback) > 0 {
				sb.WriteString("  Last failure traceback:\n")

				for _, line := range r.LastFailure.Traceback {
					fmt.Fprintf(&sb, "    %s\n", strings.TrimSpace(line))
				}
			}
		}
	}

	writeFlakyAnalysis(&sb, reports, ids)
	writeRecentChanges(&sb, reports, ids)

	return sb.String()
}

func writeFlakyAnalysis(
	sb *strings.Builder, reports map[string]report.TestReport, ids []string,
) {
	var flaky []string

	for _, id := range ids {
		if reports[id].Analytics.IsFlaky {
			flaky = append(flaky, id)
		}
	}

	if len(flaky) == 0 {
		return
	}

	sb.WriteString("\n=== Flaky Tests Analysis ===\n")
	sb.WriteString("Tests that sometimes pass and sometimes fail:\n")

	for _, id := range flaky {
		details := reports[id].Analytics.FlakyDetails
		fmt.Fprintf(sb, "  %s: %.1f%% failure rate (%d of %d runs failed)\n",
			id,
			details.FailureRate*100,
			details.TotalFailures,
			details.TotalRuns,
		)
	}
}

func writeRecentChanges(
	sb *strings.Builder, reports map[string]report.TestReport, ids []string,
) {
	header := false

	for _, id := range ids {
		history := reports[id].History

		recentFailure := false

		for _, entry := range history {
			if entry.Status == "failed" {
				recentFailure = true

				break
			}
		}

		if !recentFailure {
			continue
		}

		if !header {
			sb.WriteString("\n=== Recent Test Changes ===\n")

			header = true
		}

		fmt.Fprintf(sb, "\n%s recent history:\n", id)

		for _, entry := range history {
			fmt.Fprintf(sb, "  %s - %s (duration: %.2fs)\n",
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.Status,
				entry.Duration,
			)

			if entry.ErrorMessage != nil {
				fmt.Fprintf(sb, "    Error: %s\n", *entry.ErrorMessage)
			}
		}
	}
}
