package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yczddgj/chartgalaxy/pkg/pipeline"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// composeOpts holds the flags of the compose command.
type composeOpts struct {
	chart       string
	title       string
	pictograms  []string
	annotations string
	reference   string
	background  string
	formats     string
	output      string
	padding     float64
	multiplier  float64
	noCache     bool
	refresh     bool
}

// composeCommand lays out one composition and writes the requested
// artifacts.
func (c *CLI) composeCommand() *cobra.Command {
	var opts composeOpts

	cmd := &cobra.Command{
		Use:   "compose [chart]",
		Short: "Compose a chart, title and pictograms into one image",
		Long: `Compose lays out a chart, a title and pictograms on the canvas and exports
the result. Sources may be file paths, http(s) URLs or data URLs.

With --annotations and --reference the layout follows the reference
infographic's annotated regions; otherwise the default layout is used and
the pictogram is placed in a transparent region of the chart.`,
		Example: `  chartgalaxy compose chart.png --title title.png --pictogram icon.png
  chartgalaxy compose chart.png -t title.png --annotations refs.xml --reference ref_01.png -f png,base`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.chart = args[0]
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("padding") {
				opts.padding = cfg.Export.Padding
			}
			if !cmd.Flags().Changed("multiplier") {
				opts.multiplier = cfg.Export.Multiplier
			}
			if opts.background == "" {
				opts.background = cfg.Canvas.Background
			}

			runner, store, err := c.newRunner(cmd.Context(), cfg, opts.noCache)
			if err != nil {
				return err
			}
			defer store.Close()
			defer runner.Close()

			return c.runCompose(cmd.Context(), runner, &opts, workbench.FromConfig(cfg))
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "title image")
	cmd.Flags().StringArrayVarP(&opts.pictograms, "pictogram", "p", nil, "pictogram image (repeatable)")
	cmd.Flags().StringVar(&opts.annotations, "annotations", "", "annotations file with reference layouts")
	cmd.Flags().StringVar(&opts.reference, "reference", "", "reference image name to look up in --annotations")
	cmd.Flags().StringVar(&opts.background, "background", "", "background color (#rrggbb)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): png (default), base, json (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().Float64Var(&opts.padding, "padding", 0, "export padding in canvas pixels")
	cmd.Flags().Float64Var(&opts.multiplier, "multiplier", 0, "export resolution multiplier")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the asset and artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached artifacts")

	return cmd
}

func (c *CLI) runCompose(ctx context.Context, runner *pipeline.Runner, opts *composeOpts, wbOpts []workbench.Option) error {
	formats := parseFormats(opts.formats)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	res, err := runner.Execute(ctx, pipeline.Options{
		Chart:       opts.chart,
		Title:       opts.title,
		Pictograms:  opts.pictograms,
		Annotations: opts.annotations,
		Reference:   opts.reference,
		Background:  opts.background,
		Formats:     formats,
		Padding:     opts.padding,
		Multiplier:  opts.multiplier,
		Refresh:     opts.refresh,
		Workbench:   wbOpts,
	})
	if err != nil {
		return err
	}
	prog.done("Composed")

	paths := outputPaths(opts.output, formats)
	for _, f := range formats {
		if err := os.WriteFile(paths[f], res.Artifacts[f], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", paths[f], err)
		}
	}

	strategy := ""
	if res.Placement != nil {
		strategy = res.Placement.Strategy.String()
	}
	printSuccess("Composition written")
	printCompositeStats(res.Stats.Elements, strategy, len(res.Skipped), res.CacheInfo.ArtifactHit)
	for _, f := range formats {
		printFile(paths[f])
	}
	for _, src := range res.Skipped {
		printWarning("skipped %s", src)
	}
	return nil
}

// formatSuffix is appended to the base path for each format.
var formatSuffix = map[string]string{
	pipeline.FormatPNG:  ".png",
	pipeline.FormatBase: ".base.png",
	pipeline.FormatJSON: ".json",
}

// outputPaths maps each format to a file. A single format writes to output
// as given when it has an extension; otherwise output is a base path and
// each format gets its own suffix.
func outputPaths(output string, formats []string) map[string]string {
	paths := make(map[string]string, len(formats))
	if len(formats) == 1 && filepath.Ext(output) != "" {
		paths[formats[0]] = output
		return paths
	}
	base := output
	if base == "" {
		base = defaultOutput
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, f := range formats {
		paths[f] = base + formatSuffix[f]
	}
	return paths
}
