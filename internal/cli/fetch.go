package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/glorpus-work/imgfetch/internal/logger"
	"github.com/glorpus-work/imgfetch/pkg/batch"
	"github.com/glorpus-work/imgfetch/pkg/config"
	"github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/fetch"
	"github.com/glorpus-work/imgfetch/pkg/metrics"
)

type fetchOptions struct {
	destDir     string
	backend     string
	concurrency int
	timeout     time.Duration
	timeoutSet  bool
	strict      bool
	noProgress  bool
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch [URL[,URL...]]...",
		Short: "Download images",
		Long: `Download one or more images into the configured store.
Each argument may hold several comma-separated URLs. Without arguments the URLs
are read from one line on standard input.

An image is saved under the last segment of its URL path. A URL whose content is
byte-identical to the image already stored under that name is skipped; different
content replaces it. Responses that do not declare an image/* content type are
rejected and never written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.timeoutSet = cmd.Flags().Changed("timeout")
			return runFetch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.destDir, "dest", "d", "", "Destination directory (defaults to config)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Store backend: fs or s3 (defaults to config)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "Number of parallel downloads (defaults to config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout, 0 disables it (defaults to config)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with an error when any URL failed or was rejected")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Do not show a progress bar")

	return cmd
}

func (o fetchOptions) apply(cfg *config.Config) error {
	if o.destDir != "" {
		cfg.Settings.DestDir = o.destDir
	}
	if o.backend != "" {
		cfg.Settings.Backend = o.backend
	}
	if o.concurrency != 0 {
		cfg.Settings.MaxConcurrent = o.concurrency
	}
	if o.timeoutSet {
		cfg.Settings.HTTPTimeout = o.timeout
	}
	if o.noProgress {
		cfg.Settings.Progress = false
	}
	return cfg.Validate()
}

func runFetch(cmd *cobra.Command, args []string, opts fetchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	text := cfg.Settings.OutputFormat != "json"
	interactive := len(args) == 0

	raw := args
	if interactive {
		line, err := promptURLs(cmd.InOrStdin(), out, text)
		if err != nil {
			return err
		}
		raw = []string{line}
	}

	urls := batch.ParseURLs(raw...)
	if len(urls) == 0 {
		logger.Warn("No URLs given")
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	m := metrics.New()
	rep := newReporter(out, cmd.ErrOrStderr(), len(urls), text, cfg.Settings.Progress)

	userAgent := cfg.Settings.UserAgent
	if userAgent == "" {
		userAgent = UserAgent()
	}
	driver := &batch.Driver{
		Fetcher: fetch.NewPipeline(
			fetch.WithTimeout(cfg.Settings.HTTPTimeout),
			fetch.WithUserAgent(userAgent),
		),
		Store:       st,
		Concurrency: cfg.Settings.MaxConcurrent,
		RunID:       runID,
		Hooks: batch.Hooks{
			OnStart: func(int, string) { m.Start() },
			OnResult: func(i int, res fetch.Result) {
				m.Observe(res)
				rep.onResult(i, res)
			},
		},
	}

	results := driver.Run(ctx, urls)
	rep.finish()
	summary := batch.Summarize(results)

	if text {
		_, _ = fmt.Fprintln(out, summary.String())
		if interactive {
			_, _ = fmt.Fprintf(out, "\n%s\n", closingLine)
		}
	} else if err := writeJSONReport(out, runID, results); err != nil {
		return errors.Wrap(err, "failed to write report")
	}

	if path := cfg.Settings.MetricsFile; path != "" {
		if err := m.WriteFile(path); err != nil {
			logger.Error("Failed to write metrics", logger.Fields{"path": path, "error": err.Error()})
		} else {
			logger.Debug("Metrics written", logger.Fields{"path": path})
		}
	}

	if opts.strict && summary.HasFailures() {
		return fmt.Errorf("%d of %d URLs failed or were rejected: %w",
			summary.Failed+summary.Rejected, summary.Total, errors.ErrFetchFailures)
	}
	return nil
}

// promptURLs reads one line of comma-separated URLs. The banner is only shown in text mode.
func promptURLs(in io.Reader, out io.Writer, text bool) (string, error) {
	if text {
		_, _ = fmt.Fprintln(out, welcomeBanner)
		_, _ = fmt.Fprint(out, urlPrompt)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "failed to read URLs")
	}
	if text {
		_, _ = fmt.Fprintln(out)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
