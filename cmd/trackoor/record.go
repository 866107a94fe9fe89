package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/trackoor/pkg/hostinfo"
	"github.com/ethpandaops/trackoor/pkg/store"
)

var (
	recordRunnerVersion   string
	recordPlatformVersion string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Start a run and record results from stdin",
	Long: `Start a new suite run and record one result per JSON line read from
stdin. Each line carries test_id, status, duration and the optional
error_message/error_traceback fields:

  {"test_id": "pkg/foo::TestBar", "status": "failed", "duration": 0.42,
   "error_message": "assertion failed", "error_traceback": "..."}

This is the glue a host test runner pipes into; recording stops at EOF
and the session snapshot is written if configured.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVar(&recordRunnerVersion, "runner-version", "unknown",
		"version string of the host test runner")
	recordCmd.Flags().StringVar(&recordPlatformVersion, "platform-version", "",
		"platform version string (defaults to host OS information)")
}

// resultLine is the wire format of one stdin line.
type resultLine struct {
	TestID         string  `json:"test_id"`
	Status         string  `json:"status"`
	Duration       float64 `json:"duration"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	ErrorTraceback string  `json:"error_traceback,omitempty"`
}

func runRecord(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	trk, _, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = trk.Stop() }()

	platform := recordPlatformVersion
	if platform == "" {
		platform = hostinfo.Platform()
	}

	session, err := trk.StartRun(ctx, recordRunnerVersion, platform)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}

	log.WithField("run_id", session.RunID()).Info("Run started")

	var recorded int

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var res resultLine
		if err := json.Unmarshal(line, &res); err != nil {
			return fmt.Errorf("parsing result line %d: %w", recorded+1, err)
		}

		if err := session.Record(
			ctx,
			res.TestID,
			store.Status(res.Status),
			res.Duration,
			res.ErrorMessage,
			res.ErrorTraceback,
		); err != nil {
			return fmt.Errorf("recording result for %s: %w", res.TestID, err)
		}

		recorded++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading results: %w", err)
	}

	if err := session.Close(ctx); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}

	log.WithField("run_id", session.RunID()).
		WithField("results", recorded).
		Info("Run recorded")

	return nil
}
