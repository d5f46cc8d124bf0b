// Package cmd wires the restore pipeline into a cobra command tree, the way
// the teacher's cmd package wires S3 replay/rollback subcommands onto a
// rootCmd: one command per spec.md §4.6 use case (full restore, list-only,
// apply-only).
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/TheClimateCorporation/S3DistVersions/internal/runtimeconfig"
)

// runID identifies one invocation of the CLI, the way
// prn-tf-alexander-storage generates identifiers for request-scoped
// resources. Every subcommand uses it both in its log lines and to name any
// report file the operator didn't explicitly place.
var runID = uuid.New().String()

// defaultReportPath builds a temp-directory path for a report the operator
// didn't name explicitly, tagged with runID so concurrent invocations never
// collide.
func defaultReportPath(kind string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("s3distversions-%s-%s.tsv", runID, kind))
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "s3distversions",
	Short: "Point-in-time restore of a versioned S3 bucket",
	Long: `s3distversions restores a versioned S3 bucket, or a prefix within it,
to the state it had at a given point in time, by walking every key's
version history and replaying the target version (or deleting the key)
into a destination bucket or prefix.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a runtime tunables YAML file (optional)")
}

func loadTunables() runtimeconfig.Tunables {
	t, err := runtimeconfig.Load(configPath)
	if err != nil {
		slog.Error("loading runtime configuration", "error", err)
		os.Exit(1)
	}
	initLogging(t.Logging)
	return t
}

// initLogging installs a slog default handler matching Logging.Level/Format,
// the way the teacher configures its own top-level logger in cmd/root.go.
func initLogging(cfg runtimeconfig.LoggingConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
