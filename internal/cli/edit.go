package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/config"
	cgerrors "github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/session"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

type editOpts struct {
	title      string
	pictograms []string
	session    string
	saveAs     string
	background string
	output     string
}

// editCommand opens a composition in the terminal editor.
func (c *CLI) editCommand() *cobra.Command {
	var opts editOpts

	cmd := &cobra.Command{
		Use:   "edit [chart]",
		Short: "Adjust a composition interactively",
		Long: `Edit composes the given assets, or opens a saved session, and lets you
move, scale, rotate, hide and delete elements. Every change can be undone;
states overwritten by an edit or a deletion can be brought back with
quick-redo.

With --session or --save-as the composition is saved on exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.session == "" {
				return cgerrors.New(cgerrors.ErrCodeInvalidInput, "a chart or --session is required")
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			chart := ""
			if len(args) == 1 {
				chart = args[0]
			}
			return c.runEdit(cmd.Context(), cfg, chart, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "title image")
	cmd.Flags().StringArrayVarP(&opts.pictograms, "pictogram", "p", nil, "pictogram image (repeatable)")
	cmd.Flags().StringVar(&opts.session, "session", "", "open a saved session")
	cmd.Flags().StringVar(&opts.saveAs, "save-as", "", "save the new composition as a session with this name")
	cmd.Flags().StringVar(&opts.background, "background", "", "background color (#rrggbb)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", defaultOutput+".png", "export target")

	return cmd
}

func (c *CLI) runEdit(ctx context.Context, cfg config.Config, chart string, opts *editOpts) error {
	assetCache, err := newCache(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer assetCache.Close()

	// Logs would tear the alternate screen; the editor reports in its
	// status line instead.
	wb := workbench.New(c.newLoader(cfg, assetCache), workbench.FromConfig(cfg)...)
	defer wb.Close()

	var (
		store session.Store
		sess  *session.Session
	)
	if opts.session != "" || opts.saveAs != "" {
		store, err = newSessionStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if opts.session != "" {
		if sess, err = store.Get(ctx, opts.session); err != nil {
			return err
		}
		if sess == nil {
			return cgerrors.New(cgerrors.ErrCodeSessionNotFound, "session %s not found", opts.session)
		}
		if err := wb.Open(ctx, sess); err != nil {
			return err
		}
	} else {
		res, err := wb.Compose(ctx, workbench.Request{
			Request: compositor.Request{
				ChartSource:      chart,
				TitleSource:      opts.title,
				PictogramSources: opts.pictograms,
			},
			Background: opts.background,
		})
		if err != nil {
			return err
		}
		for _, src := range res.Skipped {
			printWarning("skipped %s", src)
		}
		if opts.saveAs != "" {
			sess = session.New(opts.saveAs, cfg.Sessions.TTL.Duration)
		}
	}

	var save func() error
	if sess != nil {
		save = func() error {
			if err := wb.Save(sess); err != nil {
				return err
			}
			sess.Touch(cfg.Sessions.TTL.Duration)
			return store.Set(ctx, sess)
		}
	}

	model := NewEditorModel(wb, opts.output, save)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if sess != nil {
		printSuccess("Session saved")
		printKeyValue("id", sess.ID)
	}
	return nil
}
