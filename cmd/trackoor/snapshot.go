package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/trackoor/pkg/report"
	"github.com/ethpandaops/trackoor/pkg/upload"
)

var (
	snapshotOutput string
	snapshotUpload bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the per-test counts snapshot file",
	Long: `Generate the lightweight snapshot artifact (per-test counts without
history) from the full recorded history, for inter-session diffing.
With --upload the snapshot is also pushed to the configured S3 bucket.`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVar(&snapshotOutput, "output", "",
		"snapshot file path (defaults to the configured path)")
	snapshotCmd.Flags().BoolVar(&snapshotUpload, "upload", false,
		"upload the snapshot to the configured S3 bucket")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	trk, cfg, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = trk.Stop() }()

	reports, err := trk.BuildReport(ctx)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	path := snapshotOutput
	if path == "" {
		path = cfg.Tracker.Snapshot.Path
	}

	snap := report.NewSnapshot(reports)

	if err := report.WriteSnapshot(path, snap); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	log.WithField("path", path).
		WithField("tests", len(snap.Tests)).
		Info("Snapshot written")

	if !snapshotUpload {
		return nil
	}

	if cfg.Upload == nil || cfg.Upload.S3 == nil || !cfg.Upload.S3.Enabled {
		return fmt.Errorf("--upload requires an enabled upload.s3 config section")
	}

	uploader, err := upload.NewS3Uploader(log, cfg.Upload.S3)
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}

	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("upload preflight: %w", err)
	}

	if err := uploader.UploadSnapshot(ctx, path); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}

	return nil
}
