// Package cli implements the chartgalaxy command-line interface.
package cli

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yczddgj/chartgalaxy/pkg/assets"
	"github.com/yczddgj/chartgalaxy/pkg/backend"
	"github.com/yczddgj/chartgalaxy/pkg/buildinfo"
	"github.com/yczddgj/chartgalaxy/pkg/cache"
	"github.com/yczddgj/chartgalaxy/pkg/config"
	"github.com/yczddgj/chartgalaxy/pkg/observability"
	"github.com/yczddgj/chartgalaxy/pkg/pipeline"
	"github.com/yczddgj/chartgalaxy/pkg/refine"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories, key prefixes
	// and display.
	appName = "chartgalaxy"

	// defaultOutput is the base name of composition outputs.
	defaultOutput = "composition"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Chartgalaxy lays out and composites infographics",
		Long:         `Chartgalaxy arranges a chart, a title and pictograms on a canvas, following a reference layout when one is available, and exports the result for refinement.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
				observability.Install(observability.NewLogHooks(c.Logger))
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ~/.config/chartgalaxy/config.toml)")

	root.AddCommand(c.composeCommand())
	root.AddCommand(c.placeCommand())
	root.AddCommand(c.trimCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.refineCommand())
	root.AddCommand(c.galleryCommand())
	root.AddCommand(c.backendCommand())
	root.AddCommand(c.sessionsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the configuration once per process.
func (c *CLI) config() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	c.cfg = &cfg
	return cfg, nil
}

// =============================================================================
// Factories
// =============================================================================

// newCache returns the artifact and asset cache selected by cfg: Redis when
// a URL is configured, else a file cache in the cache directory.
func newCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Cache.Disabled {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.RedisURL != "" {
		return cache.NewRedisCache(ctx, cfg.Cache.RedisURL, appName+":")
	}
	dir, err := cacheDir(cfg)
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newLoader returns an asset loader backed by c. HTML sources are enabled
// when headless rendering is configured.
func (c *CLI) newLoader(cfg config.Config, store cache.Cache) *assets.Loader {
	opts := []assets.Option{
		assets.WithCache(store, assetKeyer(cfg.Backend.URL), cfg.Cache.TTL.Duration),
		assets.WithLogger(c.Logger),
	}
	if cfg.Headless.Enabled {
		opts = append(opts, assets.WithRenderer(&assets.HeadlessRenderer{
			Selector: cfg.Headless.Selector,
			Width:    cfg.Canvas.Width,
			Height:   cfg.Canvas.Height,
			Timeout:  cfg.Headless.Timeout.Duration,
			ExecPath: cfg.Headless.ExecPath,
		}))
	}
	return assets.NewLoader(opts...)
}

// assetKeyer scopes asset keys by backend host. It returns nil, the default
// keyer, when no backend is configured.
func assetKeyer(backendURL string) cache.Keyer {
	u, err := url.Parse(backendURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return cache.NewScopedKeyer(nil, "backend:"+u.Host+":")
}

// newRunner creates a pipeline runner for CLI use. The returned cache must
// be closed by the caller.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*pipeline.Runner, cache.Cache, error) {
	store, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.NewRunner(c.newLoader(cfg, store), store, nil, c.Logger), store, nil
}

// newBackend returns a client for the configured refinement backend.
func (c *CLI) newBackend(cfg config.Config) (*backend.Client, error) {
	return backend.NewClient(cfg.Backend.URL,
		backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout.Duration}),
		backend.WithRetries(cfg.Backend.Retries),
		backend.WithLogger(c.Logger),
	)
}

// newRefiner returns a refine runner. Variants go to MongoDB when a URI is
// configured; the returned cleanup disconnects it.
func (c *CLI) newRefiner(ctx context.Context, cfg config.Config) (*refine.Runner, func(), error) {
	client, err := c.newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []refine.Option{
		refine.WithPollInterval(cfg.Poller.RefineInterval.Duration),
		refine.WithMaxAttempts(cfg.Poller.RefineMaxAttempts),
		refine.WithLogger(c.Logger),
	}
	cleanup := func() {}
	if cfg.Gallery.MongoURI != "" {
		store, mc, err := refine.ConnectMongo(ctx, cfg.Gallery.MongoURI, cfg.Gallery.Database)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, refine.WithGallery(store))
		cleanup = func() { disconnect(mc) }
	}
	return refine.NewRunner(client, opts...), cleanup, nil
}

func disconnect(mc *mongo.Client) {
	_ = mc.Disconnect(context.Background())
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, falling back to the XDG
// location (~/.cache/chartgalaxy/).
func cacheDir(cfg config.Config) (string, error) {
	return cfg.CacheDir()
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatPNG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
