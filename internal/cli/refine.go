package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/yczddgj/chartgalaxy/pkg/assets"
	"github.com/yczddgj/chartgalaxy/pkg/backend"
	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/config"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/poller"
	"github.com/yczddgj/chartgalaxy/pkg/refine"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// materialFlags binds the flags naming a refinement's materials.
func materialFlags(cmd *cobra.Command, m *backend.Materials) {
	cmd.Flags().StringVar(&m.Title, "title-name", "", "title asset name the composition was built from")
	cmd.Flags().StringVar(&m.Pictogram, "pictogram-name", "", "pictogram asset name the composition was built from")
	cmd.Flags().StringVar(&m.ChartType, "chart-type", "", "chart type")
}

type refineOpts struct {
	title      string
	pictograms []string
	session    string
	output     string
	force      bool
	materials  backend.Materials
}

// refineCommand composes and submits the result to the refinement backend.
func (c *CLI) refineCommand() *cobra.Command {
	var opts refineOpts

	cmd := &cobra.Command{
		Use:   "refine [chart]",
		Short: "Submit a composition for refinement and fetch the result",
		Long: `Refine composes the given assets (or opens a saved session), sends the
flattened image to the backend and waits for the refined variant. The
variant history for the same materials is stored in the gallery.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.session == "" {
				return errors.New(errors.ErrCodeInvalidInput, "a chart or --session is required")
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			chart := ""
			if len(args) == 1 {
				chart = args[0]
			}
			return c.runRefine(cmd.Context(), cfg, chart, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "title image")
	cmd.Flags().StringArrayVarP(&opts.pictograms, "pictogram", "p", nil, "pictogram image (repeatable)")
	cmd.Flags().StringVar(&opts.session, "session", "", "refine a saved session instead")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "download the refined image to this file")
	cmd.Flags().BoolVar(&opts.force, "force", false, "regenerate even if a cached variant exists")
	materialFlags(cmd, &opts.materials)

	return cmd
}

func (c *CLI) runRefine(ctx context.Context, cfg config.Config, chart string, opts *refineOpts) error {
	assetCache, err := newCache(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer assetCache.Close()
	loader := c.newLoader(cfg, assetCache)

	refiner, cleanup, err := c.newRefiner(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	wb := workbench.New(loader, append(workbench.FromConfig(cfg),
		workbench.WithRefiner(refiner),
		workbench.WithLogger(c.Logger))...)
	defer wb.Close()

	m := opts.materials
	if opts.session != "" {
		store, err := newSessionStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		sess, err := store.Get(ctx, opts.session)
		if err != nil {
			return err
		}
		if sess == nil {
			return errors.New(errors.ErrCodeSessionNotFound, "session %s not found", opts.session)
		}
		if err := wb.Open(ctx, sess); err != nil {
			return err
		}
		m.Title = firstNonEmpty(m.Title, sess.Selection.Title)
		m.Pictogram = firstNonEmpty(m.Pictogram, sess.Selection.Pictogram)
		m.ChartType = firstNonEmpty(m.ChartType, sess.Selection.ChartType)
	} else {
		_, err := wb.Compose(ctx, workbench.Request{Request: compositor.Request{
			ChartSource:      chart,
			TitleSource:      opts.title,
			PictogramSources: opts.pictograms,
		}})
		if err != nil {
			return err
		}
	}

	spinner := newSpinnerWithContext(ctx, "Waiting for refinement...")
	spinner.Start()
	res, err := wb.Refine(ctx, refine.Request{Materials: m, Force: opts.force})
	if err != nil {
		spinner.StopWithError("Refinement failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Refined (%d variants)", len(res.Variants)))
	printLink(res.Latest.URL)

	if opts.output != "" {
		if err := download(ctx, loader, res.Latest.URL, opts.output); err != nil {
			return err
		}
		printFile(opts.output)
	}
	if len(res.Variants) > 1 {
		printNextStep("See all variants", fmt.Sprintf("%s gallery --title-name %q --pictogram-name %q --chart-type %q", appName, m.Title, m.Pictogram, m.ChartType))
	}
	return nil
}

// download fetches url through the loader and writes the raw bytes to path.
func download(ctx context.Context, loader *assets.Loader, url, path string) error {
	data, _, err := loader.Bytes(ctx, url)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// galleryCommand lists the refined variants for a set of materials.
func (c *CLI) galleryCommand() *cobra.Command {
	var (
		m       backend.Materials
		offline bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List refined variants for a set of materials",
		Long: `Gallery fetches the variant history for the given materials from the
backend and stores it in the gallery. With --offline only the stored
gallery is read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			refiner, cleanup, err := c.newRefiner(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			var variants []refine.Variant
			if offline {
				variants, err = refiner.Gallery().List(ctx, m)
			} else {
				variants, err = refiner.Replay(ctx, m)
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(variants)
			}
			if len(variants) == 0 {
				printInfo("No variants")
				return nil
			}
			fmt.Println(variantTable(variants))
			return nil
		},
	}

	materialFlags(cmd, &m)
	cmd.Flags().BoolVar(&offline, "offline", false, "read the stored gallery without contacting the backend")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func variantTable(variants []refine.Variant) string {
	rows := make([][]string, 0, len(variants))
	for _, v := range variants {
		method := v.Method
		if method == "" {
			method = "—"
		}
		rows = append(rows, []string{strconv.Itoa(v.Version), method, firstNonEmpty(v.Timestamp, v.AddedAt.Format(time.RFC3339)), v.URL})
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Version", "Method", "Created", "URL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 3 {
				return StyleLink
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		}).
		Render()
}

// backendCommand queries and drives the generation backend directly.
func (c *CLI) backendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Query the generation backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current job status",
		Args:  cobra.NoArgs,
		RunE: c.withBackend(func(ctx context.Context, b *backend.Client, _ config.Config, _ []string) error {
			st, err := b.Status(ctx)
			if err != nil {
				return err
			}
			printKeyValue("step", string(st.Step))
			printKeyValue("state", string(st.State))
			printKeyValue("completed", strconv.FormatBool(st.Completed))
			if st.Progress != "" {
				printKeyValue("progress", st.Progress)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "layout",
		Short: "Print the extracted reference layout as JSON",
		Args:  cobra.NoArgs,
		RunE: c.withBackend(func(ctx context.Context, b *backend.Client, _ config.Config, _ []string) error {
			desc, err := b.Layout(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(desc)
		}),
	})

	for _, list := range []struct {
		use   string
		short string
		fetch func(*backend.Client, context.Context) ([]string, error)
	}{
		{"titles", "List generated title images", (*backend.Client).Titles},
		{"pictograms", "List generated pictogram images", (*backend.Client).Pictograms},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   list.use,
			Short: list.short,
			Args:  cobra.NoArgs,
			RunE: c.withBackend(func(ctx context.Context, b *backend.Client, _ config.Config, _ []string) error {
				names, err := list.fetch(b, ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			}),
		})
	}

	cmd.AddCommand(c.backendGenerateCommand())
	return cmd
}

// generateSteps maps generate subcommand arguments to backend triggers.
var generateSteps = map[string]struct {
	step  poller.Step
	start func(*backend.Client, context.Context, string) error
}{
	"reference": {poller.StepFindReference, (*backend.Client).StartFindReference},
	"title":     {poller.StepTitleGeneration, (*backend.Client).StartTitleGeneration},
	"pictogram": {poller.StepPictogramGeneration, (*backend.Client).StartPictogramGeneration},
}

func (c *CLI) backendGenerateCommand() *cobra.Command {
	var regenerate bool

	cmd := &cobra.Command{
		Use:   "generate [reference|title|pictogram] [input]",
		Short: "Start a generation job and wait for it",
		Long: `Generate starts a backend job and polls until it completes. reference and
title take the data file; pictogram takes the chosen title text.`,
		ValidArgs: []string{"reference", "title", "pictogram"},
		Args:      cobra.ExactArgs(2),
		RunE: c.withBackend(func(ctx context.Context, b *backend.Client, cfg config.Config, args []string) error {
			gen, ok := generateSteps[args[0]]
			if !ok {
				return errors.New(errors.ErrCodeInvalidInput, "unknown job %q (must be reference, title or pictogram)", args[0])
			}
			start := gen.start
			if regenerate {
				switch args[0] {
				case "title":
					start = (*backend.Client).RegenerateTitle
				case "pictogram":
					start = (*backend.Client).RegeneratePictogram
				}
			}
			if err := start(b, ctx, args[1]); err != nil {
				return err
			}

			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Waiting for %s...", gen.step))
			spinner.Start()
			p := poller.New(b,
				poller.WithInterval(cfg.Poller.Interval.Duration),
				poller.WithLogger(c.Logger))
			st, err := p.Poll(ctx, gen.step)
			if err != nil {
				spinner.StopWithError(fmt.Sprintf("%s failed", gen.step))
				return err
			}
			spinner.StopWithSuccess(fmt.Sprintf("%s complete", gen.step))
			if st.Progress != "" {
				printDetail("%s", st.Progress)
			}
			switch pl := st.Payload.(type) {
			case *poller.TitlePayload:
				for _, n := range pl.Names() {
					printFile(n)
				}
			case *poller.PictogramPayload:
				for _, n := range pl.Names() {
					printFile(n)
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "regenerate title or pictogram options")
	return cmd
}

// withBackend adapts fn to a cobra RunE with a configured backend client.
func (c *CLI) withBackend(fn func(context.Context, *backend.Client, config.Config, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := c.config()
		if err != nil {
			return err
		}
		b, err := c.newBackend(cfg)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), b, cfg, args)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
