package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheClimateCorporation/S3DistVersions/pkg/objectstore"
	"github.com/TheClimateCorporation/S3DistVersions/pkg/pipeline"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a bucket or prefix to its state at a point in time",
	Long: `restore runs the full four-stage pipeline: it lists every key under
the source prefix, selects the version each key had at --restore-time, and
copies or deletes objects in the destination to match.

With --dry-run, the pipeline still lists and selects versions and reports
what it would do, but never mutates the destination.`,
	Run: func(cmd *cobra.Command, args []string) {
		src, _ := cmd.Flags().GetString("src")
		dest, _ := cmd.Flags().GetString("dest")
		restoreTimeStr, _ := cmd.Flags().GetString("restore-time")
		prefixesFile, _ := cmd.Flags().GetString("prefixes")
		versionsOutput, _ := cmd.Flags().GetString("version-info-output")
		restoredOutput, _ := cmd.Flags().GetString("restored-output")
		deleteFlag, _ := cmd.Flags().GetBool("delete")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

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
		destBucket, destPrefix := srcBucket, srcPrefix
		if dest != "" {
			destBucket, destPrefix, err = pipeline.BucketAndPrefix(dest)
			if err != nil {
				slog.Error("invalid --dest", "error", err)
				os.Exit(1)
			}
		}

		tunables := loadTunables()
		if concurrency <= 0 {
			concurrency = tunables.Restore.Concurrency
		}

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
			DestBucket:  destBucket,
			DestPrefix:  destPrefix,
			RestoreTime: restoreTime,
			Delete:      deleteFlag,
		}

		prefixes, err := (pipeline.PrefixSource{Path: prefixesFile}).Prefixes()
		if err != nil {
			slog.Error("reading prefix list", "error", err)
			os.Exit(1)
		}

		if versionsOutput == "" {
			versionsOutput = defaultReportPath("versions")
		}
		if restoredOutput == "" {
			restoredOutput = defaultReportPath("restored")
		}

		versionsWriter, err := pipeline.NewReportWriter(versionsOutput)
		if err != nil {
			slog.Error("creating version-info-output", "error", err)
			os.Exit(1)
		}
		defer versionsWriter.Close()

		restoredWriter, err := pipeline.NewReportWriter(restoredOutput)
		if err != nil {
			slog.Error("creating restored-output", "error", err)
			os.Exit(1)
		}
		defer restoredWriter.Close()

		orch := pipeline.Orchestrator{
			Store:  store,
			Config: config,
			Reducers: pipeline.Reducers{
				Prefix:  tunables.Shuffle.PrefixReducers(),
				Version: tunables.Shuffle.VersionReducers(),
			},
			PageSize:    tunables.Listing.PageSize,
			Concurrency: concurrency,
			Restorer:    pipeline.Restorer{Store: store, Config: config, DryRun: dryRun},
			OnVersion: func(key string, v pipeline.VersionRecord) {
				if versionsWriter != nil {
					if err := versionsWriter.WriteVersion(key, v); err != nil {
						slog.Error("writing version-info-output", "key", key, "error", err)
					}
				}
			},
			OnAction: func(key string, a pipeline.Action) {
				if restoredWriter != nil {
					if err := restoredWriter.WriteAction(key, a); err != nil {
						slog.Error("writing restored-output", "key", key, "error", err)
					}
				}
			},
		}

		slog.Info("starting restore",
			"runID", runID, "src", src, "dest", dest, "restoreTime", restoreTime.Format(time.RFC3339),
			"delete", deleteFlag, "dryRun", dryRun, "prefixes", len(prefixes),
			"versionInfoOutput", versionsOutput, "restoredOutput", restoredOutput)

		result, err := orch.Run(ctx, prefixes)
		if err != nil {
			slog.Error("restore aborted", "error", err)
			os.Exit(1)
		}

		for _, f := range result.Failures {
			slog.Warn("key failed", "kind", f.Kind, "key", f.Key, "error", f.Err)
		}

		slog.Info("restore complete",
			"keysSelected", result.KeysSelected, "keysRestored", result.KeysRestored, "failures", len(result.Failures))

		if len(result.Failures) > 0 {
			fmt.Fprintf(os.Stderr, "%d key(s) failed; see log output above\n", len(result.Failures))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().String("src", "", "source s3://bucket[/prefix] (required)")
	restoreCmd.Flags().String("dest", "", "destination s3://bucket[/prefix] (default: same as --src, in-place restore)")
	restoreCmd.Flags().String("restore-time", "", "point in time to restore to, RFC3339 (required)")
	restoreCmd.Flags().String("prefixes", "", "file of newline-separated key prefixes to restore (default: the whole bucket/prefix)")
	restoreCmd.Flags().String("version-info-output", "", "file to write the selected target version for every key")
	restoreCmd.Flags().String("restored-output", "", "file to write every applied copy/delete action")
	restoreCmd.Flags().Bool("delete", false, "delete keys that did not exist at --restore-time (default: leave them)")
	restoreCmd.Flags().Bool("dry-run", false, "select versions and report actions without mutating the destination")
	restoreCmd.Flags().Int("concurrency", 0, "restore worker pool width (default: the runtime config's restore.concurrency)")

	restoreCmd.MarkFlagRequired("src")
	restoreCmd.MarkFlagRequired("restore-time")
}
