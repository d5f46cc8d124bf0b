package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheClimateCorporation/S3DistVersions/pkg/objectstore"
	"github.com/TheClimateCorporation/S3DistVersions/pkg/pipeline"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a previously selected set of target versions to a destination",
	Long: `apply consumes the file produced by "list-versions" and performs the
copy/delete actions needed to bring --dest to match it, without re-running
listing or selection.`,
	Run: func(cmd *cobra.Command, args []string) {
		src, _ := cmd.Flags().GetString("src")
		dest, _ := cmd.Flags().GetString("dest")
		versionsInput, _ := cmd.Flags().GetString("version-info-input")
		restoredOutput, _ := cmd.Flags().GetString("restored-output")
		deleteFlag, _ := cmd.Flags().GetBool("delete")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

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

		versions, err := pipeline.ReadVersions(versionsInput)
		if err != nil {
			slog.Error("reading version-info-input", "error", err)
			os.Exit(1)
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
			SrcBucket:  srcBucket,
			SrcPrefix:  srcPrefix,
			DestBucket: destBucket,
			DestPrefix: destPrefix,
			Delete:     deleteFlag,
		}

		var restoredWriter *pipeline.ReportWriter
		if restoredOutput != "" {
			restoredWriter, err = pipeline.NewReportWriter(restoredOutput)
			if err != nil {
				slog.Error("creating restored-output", "error", err)
				os.Exit(1)
			}
			defer restoredWriter.Close()
		}

		orch := pipeline.Orchestrator{
			Store:       store,
			Config:      config,
			Concurrency: concurrency,
			Restorer:    pipeline.Restorer{Store: store, Config: config, DryRun: dryRun},
			OnAction: func(key string, a pipeline.Action) {
				if restoredWriter != nil {
					if err := restoredWriter.WriteAction(key, a); err != nil {
						slog.Error("writing restored-output", "key", key, "error", err)
					}
				}
			},
		}

		slog.Info("applying versions", "runID", runID, "src", src, "dest", dest, "keys", len(versions), "dryRun", dryRun)

		result, err := orch.ApplyOnly(ctx, versions)
		if err != nil {
			slog.Error("apply aborted", "error", err)
			os.Exit(1)
		}

		for _, f := range result.Failures {
			slog.Warn("key failed", "kind", f.Kind, "key", f.Key, "error", f.Err)
		}

		slog.Info("apply complete", "keysRestored", result.KeysRestored, "failures", len(result.Failures))

		if len(result.Failures) > 0 {
			fmt.Fprintf(os.Stderr, "%d key(s) failed; see log output above\n", len(result.Failures))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().String("src", "", "source s3://bucket[/prefix] the versions file's keys are relative to (required)")
	applyCmd.Flags().String("dest", "", "destination s3://bucket[/prefix] (default: same as --src, in-place restore)")
	applyCmd.Flags().String("version-info-input", "", "file produced by list-versions (required)")
	applyCmd.Flags().String("restored-output", "", "file to write every applied copy/delete action")
	applyCmd.Flags().Bool("delete", false, "delete keys whose selected version is a delete marker")
	applyCmd.Flags().Bool("dry-run", false, "report actions without mutating the destination")
	applyCmd.Flags().Int("concurrency", 0, "restore worker pool width (default: the runtime config's restore.concurrency)")

	applyCmd.MarkFlagRequired("src")
	applyCmd.MarkFlagRequired("version-info-input")
}
