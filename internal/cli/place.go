package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/config"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

type placeOpts struct {
	title   string
	at      []float64
	size    float64
	asJSON  bool
	noCache bool
}

// placement is the place command's JSON output.
type placement struct {
	Center   geom.Point      `json:"center"`
	Box      geom.Rect       `json:"box"`
	Strategy placer.Strategy `json:"strategy"`
	Chart    geom.Rect       `json:"chart"`
}

// placeCommand reports where the first pictogram would be placed on a chart.
func (c *CLI) placeCommand() *cobra.Command {
	var opts placeOpts

	cmd := &cobra.Command{
		Use:   "place [chart]",
		Short: "Show where a pictogram would be placed on a chart",
		Long: `Place lays the chart (and title, if given) out on the canvas and runs the
pictogram placement: the reference position when --at is given, else a
transparent region of the chart, else the space beside it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if len(opts.at) != 0 && len(opts.at) != 2 {
				return errors.New(errors.ErrCodeInvalidInput, "--at takes x,y")
			}
			if opts.size <= 0 {
				opts.size = cfg.Layout.PictogramSize
			}
			store, err := newCache(cmd.Context(), cfg, opts.noCache)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := c.runPlace(cmd.Context(), cfg, c.newLoader(cfg, store), args[0], &opts)
			if err != nil {
				return err
			}
			if opts.asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			printKeyValue("strategy", p.Strategy.String())
			printKeyValue("center", fmt.Sprintf("%.1f, %.1f", p.Center.X, p.Center.Y))
			printKeyValue("box", fmt.Sprintf("%.1f, %.1f → %.1f, %.1f", p.Box.Left, p.Box.Top, p.Box.Right, p.Box.Bottom))
			printKeyValue("chart", fmt.Sprintf("%.1f, %.1f → %.1f, %.1f", p.Chart.Left, p.Chart.Top, p.Chart.Right, p.Chart.Bottom))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "title image, considered when sampling")
	cmd.Flags().Float64SliceVar(&opts.at, "at", nil, "reference position x,y in canvas pixels")
	cmd.Flags().Float64Var(&opts.size, "size", 0, "pictogram size (default from config)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the asset cache")

	return cmd
}

func (c *CLI) runPlace(ctx context.Context, cfg config.Config, loader compositor.Loader, chart string, opts *placeOpts) (*placement, error) {
	wb := workbench.New(loader, append(workbench.FromConfig(cfg), workbench.WithLogger(c.Logger))...)
	defer wb.Close()

	_, err := wb.Compose(ctx, workbench.Request{Request: compositor.Request{
		ChartSource: chart,
		TitleSource: opts.title,
	}})
	if err != nil {
		return nil, err
	}

	surface := wb.Surface()
	e, ok := surface.At(0)
	if !ok || e.Kind != canvas.KindChart {
		return nil, errors.New(errors.ErrCodeImageFetch, "chart %s could not be loaded", chart)
	}
	chartRect := e.Bounds()

	req := placer.Request{
		Chart:  chartRect,
		Canvas: surface.Size(),
		Size:   opts.size,
		ChartImage: surface.Capture(canvas.CaptureOptions{
			Region:      chartRect,
			Transparent: true,
		}),
	}
	if len(opts.at) == 2 {
		req.Reference = &geom.Point{X: opts.at[0], Y: opts.at[1]}
	}

	p := placer.New(cfg.Sampler)
	p.Padding = cfg.Placer.Padding
	p.GridSize = cfg.Placer.GridSize
	res := p.Place(req)
	return &placement{
		Center:   res.Center,
		Box:      res.Box(opts.size),
		Strategy: res.Strategy,
		Chart:    chartRect,
	}, nil
}
