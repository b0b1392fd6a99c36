package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datallboy/gofetch/internal/engine"
	"github.com/datallboy/gofetch/internal/infra/config"
	"github.com/datallboy/gofetch/internal/infra/logger"
	"github.com/datallboy/gofetch/internal/manifest"
	"github.com/datallboy/gofetch/internal/progress"
	"github.com/datallboy/gofetch/internal/retry"
	"github.com/datallboy/gofetch/internal/verify"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gofetch <manifest> <download-dir>",
		Short: "Synchronize a manifest-described set of remote files to local storage",
		Long: `gofetch reads a tab-separated manifest (id, filename, md5, size), verifies
files already present in the download directory by size and MD5, downloads
whatever is missing or corrupt with a bounded worker pool, retries transient
failures with exponential backoff, and prints a final accounting.

Re-running over the same directory is safe: verified files are never fetched
again.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          run,
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "path to optional YAML config file")
	cmd.Flags().Int("workers", 4, "number of download workers")
	cmd.Flags().Int("chunk-size", 8192, "download and digest chunk size in bytes")
	cmd.Flags().Int("max-retries", 3, "retries per file after the first attempt")
	cmd.Flags().Duration("initial-delay", time.Second, "initial retry backoff")
	cmd.Flags().Duration("max-delay", 30*time.Second, "backoff ceiling")
	cmd.Flags().Duration("http-timeout", 30*time.Second, "per-request HTTP timeout")
	cmd.Flags().String("base-url", "", "remote data endpoint (files fetched from <base-url>/<id>)")
	cmd.Flags().String("status-url", "", "remote status endpoint for the reachability probe")
	cmd.Flags().String("log-path", "", "log file path (empty: stdout only)")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	manifestPath, downloadDir := args[0], args[1]

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return err
	}

	records, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	log.Info("Loaded manifest with %d files", len(records))
	log.Info("Download directory: %s", downloadDir)
	log.Info("Max workers: %d", cfg.Download.Workers)

	ctx := cmd.Context()

	client := engine.NewClient(cfg.BaseURL, cfg.StatusURL, cfg.Download.HTTPTimeout)
	if err := client.Ping(ctx); err != nil {
		// The probe is advisory: the remote side may still serve data even
		// when its status endpoint is unhappy.
		log.Warn("remote service probe failed: %v", err)
	}

	agg := progress.NewAggregator()
	syncer := engine.NewSyncer(engine.Options{
		Dir:      downloadDir,
		Client:   client,
		Verifier: verify.New(cfg.Download.ChunkSize),
		Policy: retry.Policy{
			MaxRetries:   cfg.Download.MaxRetries,
			InitialDelay: cfg.Download.InitialDelay,
			MaxDelay:     cfg.Download.MaxDelay,
		},
		Workers:   cfg.Download.Workers,
		ChunkSize: cfg.Download.ChunkSize,
		Reporter:  agg,
		Log:       log,
	})

	renderer := progress.NewRenderer(agg, os.Stdout)
	renderCtx, stopRender := context.WithCancel(ctx)
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderer.Run(renderCtx)
	}()

	summary, syncErr := syncer.Sync(ctx, records)

	stopRender()
	<-renderDone
	if summary != nil && !summary.NothingToDo() {
		renderer.Finish()
	}

	if summary != nil {
		printSummary(os.Stdout, summary)
	}

	return syncErr
}

func printSummary(w io.Writer, s *engine.Summary) {
	if s.NothingToDo() {
		fmt.Fprintln(w, "All files are already downloaded and verified!")
		return
	}

	fmt.Fprintf(w, "\nDownload Summary:\n")
	fmt.Fprintf(w, "Total files processed: %d\n", s.Completed+s.Failed+s.Skipped)
	fmt.Fprintf(w, "Successfully downloaded: %d\n", s.Completed)
	fmt.Fprintf(w, "Already existed (skipped): %d\n", s.Skipped)
	fmt.Fprintf(w, "Failed downloads: %d\n", s.Failed)
	fmt.Fprintf(w, "Total time: %s\n", s.Elapsed.Truncate(100*time.Millisecond))

	if s.Failed > 0 {
		fmt.Fprintf(w, "\nFailed downloads:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  - %s: %s (%s)\n", f.Filename, f.Error,
				attemptsLabel(f.Attempts))
		}
		fmt.Fprintf(w, "\nRe-run to retry failed downloads.\n")
	}
}

func attemptsLabel(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%s attempts", humanize.Comma(int64(n)))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
