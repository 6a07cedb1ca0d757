package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/glorpus-work/imgfetch/pkg/store"
)

// NewStoreCmd creates the store command with subcommands.
func NewStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the image store",
		Long:  "Show information about the images already fetched into the configured store",
	}

	cmd.AddCommand(
		newStoreInfoCmd(),
		newStoreListCmd(),
		newStoreDirCmd(),
	)

	return cmd
}

func newStoreInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show store information",
		Long:  "Display the location, image count and total size of the store",
		Args:  cobra.NoArgs,
		RunE:  runStoreInfo,
	}
}

func newStoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored images",
		Long:  "List every image in the store with its size and modification time",
		Args:  cobra.NoArgs,
		RunE:  runStoreList,
	}
}

func newStoreDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Show store location",
		Long:  "Display the directory or S3 URI images are stored in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := inspectStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), st.Location(""))
			return nil
		},
	}
}

type storeInfo struct {
	Location  string `json:"location"`
	Images    int    `json:"images"`
	TotalSize int64  `json:"total_size"`
}

func loadStoreImages(cmd *cobra.Command) (string, []store.StoredImage, bool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, false, err
	}
	st, err := inspectStore(cmd.Context(), cfg)
	if err != nil {
		return "", nil, false, err
	}
	images, err := st.List(cmd.Context())
	if err != nil {
		return "", nil, false, err
	}
	return st.Location(""), images, cfg.Settings.OutputFormat == "json", nil
}

func runStoreInfo(cmd *cobra.Command, _ []string) error {
	location, images, asJSON, err := loadStoreImages(cmd)
	if err != nil {
		return err
	}

	info := storeInfo{Location: location, Images: len(images)}
	for _, img := range images {
		info.TotalSize += img.Size
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	_, _ = fmt.Fprintf(out, "Store Location: %s\n", info.Location)
	_, _ = fmt.Fprintf(out, "Images: %d\n", info.Images)
	_, _ = fmt.Fprintf(out, "Total Size: %s\n", humanize.Bytes(uint64(info.TotalSize)))
	return nil
}

func runStoreList(cmd *cobra.Command, _ []string) error {
	_, images, asJSON, err := loadStoreImages(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if images == nil {
			images = []store.StoredImage{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(images)
	}

	if len(images) == 0 {
		_, _ = fmt.Fprintln(out, "No images stored")
		return nil
	}

	tabWriter := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "NAME\tSIZE\tMODIFIED")
	_, _ = fmt.Fprintln(tabWriter, "----\t----\t--------")
	for _, img := range images {
		modified := "-"
		if !img.ModTime.IsZero() {
			modified = humanize.Time(img.ModTime)
		}
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%s\n", img.Name, humanize.Bytes(uint64(img.Size)), modified)
	}
	return tabWriter.Flush()
}
