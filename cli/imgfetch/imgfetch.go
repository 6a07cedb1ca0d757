package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/glorpus-work/imgfetch/internal/cli"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	verbose      bool
	outputFormat string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgfetch",
		Short: "Fetch images from the web into a local or S3 store",
		Long: `imgfetch downloads images from a list of URLs:
- only responses that declare an image/* content type are kept
- files are named after the URL path and written atomically
- images already stored with identical content are skipped`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: auto-detect)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format (text, json)")

	cli.ConfigPath = &configPath
	cli.Verbose = &verbose
	cli.OutputFormat = &outputFormat

	cmd.AddCommand(
		cli.NewFetchCmd(),
		cli.NewStoreCmd(),
		cli.NewConfigCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
