package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
)

// trimCommand crops an image to its non-transparent content.
func (c *CLI) trimCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "trim [image]",
		Short: "Crop an image to its visible content",
		Long: `Trim removes the transparent margin around an image, using the same
alpha threshold the compositor applies to generated titles and pictograms.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			store, err := newCache(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			img, err := c.newLoader(cfg, store).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			trimmed := cfg.Sampler.Trim(img)
			if output == "" {
				output = trimmedName(args[0])
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := canvas.WritePNG(f, trimmed); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			before, after := img.Bounds(), trimmed.Bounds()
			printSuccess("Trimmed %dx%d → %dx%d", before.Dx(), before.Dy(), after.Dx(), after.Dy())
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <name>.trimmed.png)")
	return cmd
}

// trimmedName derives the default output for trim from a source path or
// URL.
func trimmedName(src string) string {
	base := filepath.Base(src)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if strings.HasPrefix(src, "data:") || base == "" || base == "." || base == "/" {
		base = "image"
	}
	return fmt.Sprintf("%s.trimmed.png", strings.TrimSuffix(base, filepath.Ext(base)))
}
