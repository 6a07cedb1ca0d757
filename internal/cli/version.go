package cli

import (
	"fmt"

	"github.com/hashicorp/go-version"
	"github.com/spf13/cobra"

	"github.com/glorpus-work/imgfetch/pkg/errors"
)

// Set at build time with -ldflags "-X github.com/glorpus-work/imgfetch/internal/cli.Version=...".
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// parsedVersion returns the build version, or nil when it is not a semantic version (e.g. "dev").
func parsedVersion() *version.Version {
	v, err := version.NewVersion(Version)
	if err != nil {
		return nil
	}
	return v
}

// UserAgent is the User-Agent header sent with every image request.
func UserAgent() string {
	if v := parsedVersion(); v != nil {
		return "imgfetch/" + v.String()
	}
	return "imgfetch/" + Version
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var require string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information for imgfetch.
With --require the command fails unless the version satisfies the constraint,
which lets scripts check for a minimum version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd, require)
		},
	}

	cmd.Flags().StringVar(&require, "require", "", `Version constraint to check, e.g. ">= 0.1, < 1.0"`)

	return cmd
}

func runVersion(cmd *cobra.Command, require string) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "imgfetch version %s\n", Version)
	_, _ = fmt.Fprintf(out, "Build date: %s\n", BuildDate)
	_, _ = fmt.Fprintf(out, "Git commit: %s\n", GitCommit)

	if require == "" {
		return nil
	}
	constraints, err := version.NewConstraint(require)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %q", require)
	}
	v := parsedVersion()
	if v == nil {
		return fmt.Errorf("version %q is not a semantic version: %w", Version, errors.ErrInvalidValue)
	}
	if !constraints.Check(v) {
		return fmt.Errorf("version %s does not satisfy %s: %w", v, constraints, errors.ErrInvalidValue)
	}
	return nil
}
