package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/yczddgj/chartgalaxy/internal/server"
	"github.com/yczddgj/chartgalaxy/pkg/config"
	"github.com/yczddgj/chartgalaxy/pkg/pipeline"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/session"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// sessionCleanupInterval is how often serve purges expired sessions.
const sessionCleanupInterval = time.Hour

// newSessionStore returns Redis-backed sessions when a URL is configured,
// else JSON files in the sessions directory.
func newSessionStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	if cfg.Sessions.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Sessions.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		return session.NewRedisStore(client, appName+":"), nil
	}
	return session.NewFileStore(cfg.Sessions.Dir)
}

// serveCommand runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		noCache   bool
		noBackend bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve composition sessions over HTTP",
		Long: `Serve exposes the workbench over a JSON API. Sessions persist to the
configured store (files or Redis) and survive restarts. Refinement
endpoints are enabled unless --no-backend is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			store, err := newSessionStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			assetCache, err := newCache(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer assetCache.Close()
			loader := c.newLoader(cfg, assetCache)

			p := placer.New(cfg.Sampler)
			p.Padding = cfg.Placer.Padding
			p.GridSize = cfg.Placer.GridSize

			srvCfg := server.Config{
				Store:      store,
				Loader:     loader,
				Workbench:  workbench.FromConfig(cfg),
				Pipeline:   pipeline.NewRunner(loader, assetCache, nil, c.Logger),
				Placer:     p,
				SessionTTL: cfg.Sessions.TTL.Duration,
				Logger:     c.Logger,
			}
			if !noBackend && cfg.Backend.URL != "" {
				refiner, cleanup, err := c.newRefiner(ctx, cfg)
				if err != nil {
					return err
				}
				defer cleanup()
				srvCfg.Refiner = refiner
				c.Logger.Info("refinement enabled", "backend", cfg.Backend.URL)
			}

			srv := server.New(srvCfg)
			go cleanupSessions(ctx, srv, c)

			err = srv.ListenAndServe(ctx, addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the asset and artifact cache")
	cmd.Flags().BoolVar(&noBackend, "no-backend", false, "disable refinement endpoints")

	return cmd
}

func cleanupSessions(ctx context.Context, srv *server.Server, c *CLI) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.Cleanup(ctx); err != nil {
				c.Logger.Warn("session cleanup failed", "err", err)
			}
		}
	}
}
