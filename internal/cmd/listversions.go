package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheClimateCorporation/S3DistVersions/pkg/objectstore"
	"github.com/TheClimateCorporation/S3DistVersions/pkg/pipeline"
)

var listVersionsCmd = &cobra.Command{
	Use:   "list-versions",
	Short: "Select, without applying, the version each key had at a point in time",
	Long: `list-versions runs the first three pipeline stages only: it lists every
key under the source prefix, selects the version it had at --restore-time,
and writes one line per key to --version-info-output. Nothing in the
destination is touched.

The resulting file can later be fed to "apply" to restore it without
re-running selection, splitting a restore's read side from its write
side (spec.md's listversions/apply split).`,
	Run: func(cmd *cobra.Command, args []string) {
		src, _ := cmd.Flags().GetString("src")
		restoreTimeStr, _ := cmd.Flags().GetString("restore-time")
		prefixesFile, _ := cmd.Flags().GetString("prefixes")
		versionsOutput, _ := cmd.Flags().GetString("version-info-output")

		restoreTime, err := time.Parse(time.RFC3339, restoreTimeStr)
		if err != nil {
			slog.Error("invalid --restore-time, expected RFC3339", "value", restoreTimeStr, "error", err)
			os.Exit(1)
		}

		srcBucket, srcPrefix, err := pipeline.BucketAndPrefix(src)
		if err != nil {
			slog.Error("invalid --src", "error", err)
			os.Exit(1)
		}

		tunables := loadTunables()

		ctx := context.Background()
		store, err := objectstore.NewS3Store(ctx, objectstore.BackoffConfig{
			InitialInterval: tunables.Backoff.InitialInterval,
			MaxInterval:     tunables.Backoff.MaxInterval,
			MaxRetries:      tunables.Backoff.MaxRetries,
		})
		if err != nil {
			slog.Error("connecting to S3", "error", err)
			os.Exit(1)
		}

		config := pipeline.RestoreConfig{
			SrcBucket:   srcBucket,
			SrcPrefix:   srcPrefix,
			RestoreTime: restoreTime,
		}

		prefixes, err := (pipeline.PrefixSource{Path: prefixesFile}).Prefixes()
		if err != nil {
			slog.Error("reading prefix list", "error", err)
			os.Exit(1)
		}

		if versionsOutput == "" {
			versionsOutput = defaultReportPath("versions")
		}
		writer, err := pipeline.NewReportWriter(versionsOutput)
		if err != nil {
			slog.Error("creating version-info-output", "error", err)
			os.Exit(1)
		}
		defer writer.Close()

		orch := pipeline.Orchestrator{
			Store:  store,
			Config: config,
			Reducers: pipeline.Reducers{
				Prefix:  tunables.Shuffle.PrefixReducers(),
				Version: tunables.Shuffle.VersionReducers(),
			},
			PageSize: tunables.Listing.PageSize,
			OnVersion: func(key string, v pipeline.VersionRecord) {
				if err := writer.WriteVersion(key, v); err != nil {
					slog.Error("writing version-info-output", "key", key, "error", err)
				}
			},
		}

		slog.Info("listing versions",
			"runID", runID, "src", src, "restoreTime", restoreTime.Format(time.RFC3339),
			"prefixes", len(prefixes), "versionInfoOutput", versionsOutput)

		result, err := orch.SelectOnly(ctx, prefixes)
		if err != nil {
			slog.Error("list-versions aborted", "error", err)
			os.Exit(1)
		}

		slog.Info("list-versions complete", "keysSelected", result.KeysSelected, "failures", len(result.Failures))
	},
}

func init() {
	rootCmd.AddCommand(listVersionsCmd)

	listVersionsCmd.Flags().String("src", "", "source s3://bucket[/prefix] (required)")
	listVersionsCmd.Flags().String("restore-time", "", "point in time to select versions for, RFC3339 (required)")
	listVersionsCmd.Flags().String("prefixes", "", "file of newline-separated key prefixes (default: the whole bucket/prefix)")
	listVersionsCmd.Flags().String("version-info-output", "", "file to write the selected target version for every key (default: a generated temp file, logged at startup)")

	listVersionsCmd.MarkFlagRequired("src")
	listVersionsCmd.MarkFlagRequired("restore-time")
}
