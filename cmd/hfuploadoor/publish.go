package main

import (
	"fmt"

	"github.com/ethpandaops/hfuploadoor/pkg/config"
	"github.com/ethpandaops/hfuploadoor/pkg/gitrev"
	"github.com/ethpandaops/hfuploadoor/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	publishMethod     string
	publishResultsDir string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the results directory to remote storage",
	Long: `Upload all files under the local results directory to the configured
remote repository, committing each file with a message derived from the
current git revision.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishMethod, "method", "",
		"Upload method (\"hf\" or \"s3\", overrides config)")
	publishCmd.Flags().StringVar(&publishResultsDir, "results-dir", "",
		"Path to the results directory to upload (overrides config)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags win over config file and environment.
	if publishMethod != "" {
		cfg.Upload.Method = publishMethod
	}

	if publishResultsDir != "" {
		cfg.Upload.ResultsDir = publishResultsDir
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := cmd.Context()

	// A missing revision is non-fatal: uploads fall back to a plain
	// "update" commit message.
	revision, err := gitrev.ShortCommit(ctx, "")
	if err != nil {
		log.WithError(err).Warn("Could not determine git revision")
	} else {
		log.WithField("revision", revision).Info("Resolved git revision")
	}

	commitPrefix := upload.CommitPrefix(revision)

	var uploader upload.Uploader

	switch cfg.Upload.Method {
	case config.MethodHF:
		uploader = upload.NewHFUploader(log, &cfg.HF, commitPrefix)
	case config.MethodS3:
		uploader, err = upload.NewS3Uploader(log, cfg.Upload.S3, commitPrefix)
		if err != nil {
			return fmt.Errorf("creating S3 uploader: %w", err)
		}
	}

	if err := uploader.EnsureTarget(ctx); err != nil {
		return err
	}

	log.WithField("dir", cfg.Upload.ResultsDir).Info("Uploading results")

	if err := uploader.Upload(ctx, cfg.Upload.ResultsDir); err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}

	log.Info("Upload completed successfully")

	return nil
}
