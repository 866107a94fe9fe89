package report

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GenerateMarkdown renders the report as a markdown document: a summary
// table over all tests, a flaky-tests section, and the most recent
// failure details.
func GenerateMarkdown(reports map[string]TestReport) string {
	var sb strings.Builder

	sb.Grow(4096)

	sb.WriteString("# Test Tracking Summary\n\n")

	writeSummaryTable(&sb, reports)
	writeFlakySection(&sb, reports)
	writeLastFailures(&sb, reports)

	return sb.String()
}

func sortedTestIDs(reports map[string]TestReport) []string {
	ids := make([]string, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func writeSummaryTable(sb *strings.Builder, reports map[string]TestReport) {
	sb.WriteString("## Results\n\n")
	sb.WriteString("| Test | Runs | Passes | Failures | Skips | Failure Rate | Avg Duration |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")

	for _, id := range sortedTestIDs(reports) {
		r := reports[id]

		avg := "-"
		if r.Analytics.Performance != nil {
			avg = formatSeconds(r.Analytics.Performance.AvgDuration)
		}

		fmt.Fprintf(sb, "| %s | %d | %d | %d | %d | %.1f%% | %s |\n",
			id,
			r.Analytics.TotalRuns,
			r.Passes,
			r.Failures,
			r.Skips,
			r.FailureRate*100,
			avg,
		)
	}

	sb.WriteByte('\n')
}

func writeFlakySection(sb *strings.Builder, reports map[string]TestReport) {
	var flaky []string

	for _, id := range sortedTestIDs(reports) {
		if reports[id].Analytics.IsFlaky {
			flaky = append(flaky, id)
		}
	}

	if len(flaky) == 0 {
		return
	}

	sb.WriteString("## Flaky Tests\n\n")
	sb.WriteString("Tests that sometimes pass and sometimes fail:\n\n")

	for _, id := range flaky {
		details := reports[id].Analytics.FlakyDetails
		fmt.Fprintf(sb, "- `%s`: %.1f%% failure rate (%d of %d runs failed)\n",
			id,
			details.FailureRate*100,
			details.TotalFailures,
			details.TotalRuns,
		)
	}

	sb.WriteByte('\n')
}

func writeLastFailures(sb *strings.Builder, reports map[string]TestReport) {
	var failed []string

	for _, id := range sortedTestIDs(reports) {
		if reports[id].LastFailure != nil {
			failed = append(failed, id)
		}
	}

	if len(failed) == 0 {
		return
	}

	sb.WriteString("## Recent Failures\n\n")

	for _, id := range failed {
		failure := reports[id].LastFailure

		fmt.Fprintf(sb, "### %s\n\n", id)
		fmt.Fprintf(sb, "Last failed: %s\n\n",
			failure.Timestamp.Format(time.RFC3339))

		if failure.ErrorMessage != nil {
			fmt.Fprintf(sb, "Error: `%s`\n\n", *failure.ErrorMessage)
		}

		if len(failure.Traceback) > 0 {
			sb.WriteString("```\n")

			for _, line := range failure.Traceback {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}

			sb.WriteString("```\n\n")
		}
	}
}

func formatSeconds(seconds float64) string {
	if seconds < 1 {
		return fmt.Sprintf("%.0fms", seconds*1000)
	}

	return fmt.Sprintf("%.2fs", seconds)
}
