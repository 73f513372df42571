package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/cache"
	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/layout"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// Runner executes compositions with artifact caching. It holds no per-run
// state, so one Runner can serve concurrent calls.
type Runner struct {
	Loader compositor.Loader
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner loading images through loader.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
func NewRunner(loader compositor.Loader, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Loader: loader,
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete layout → compose → export pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Layout
	layoutStart := time.Now()
	desc, err := r.ResolveLayout(opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	opts.Layout = desc
	result.Stats.LayoutTime = time.Since(layoutStart)

	result.InputHash = inputHash(opts)
	if !opts.Refresh {
		if artifacts, ok := r.cached(ctx, result.InputHash, opts); ok {
			result.Artifacts = artifacts
			result.CacheInfo.ArtifactHit = true
			r.Logger.Info("using cached composition", "formats", opts.Formats)
			return result, nil
		}
	}

	// Stage 2: Compose
	wbOpts := append([]workbench.Option(nil), opts.Workbench...)
	wbOpts = append(wbOpts,
		workbench.WithExport(opts.Padding, opts.Multiplier),
		workbench.WithLogger(opts.Logger),
	)
	wb := workbench.New(r.Loader, wbOpts...)
	defer wb.Close()

	composeStart := time.Now()
	res, err := wb.Compose(ctx, workbench.Request{
		Request: compositor.Request{
			ChartSource:      opts.Chart,
			TitleSource:      opts.Title,
			PictogramSources: opts.Pictograms,
			Layout:           opts.Layout,
		},
		Background: opts.Background,
	})
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	result.Placement = res.Placement
	result.Skipped = res.Skipped
	result.Stats.Elements = wb.Surface().Len()
	result.Stats.ComposeTime = time.Since(composeStart)

	r.Logger.Info("composed",
		"elements", result.Stats.Elements,
		"skipped", len(res.Skipped),
		"duration", result.Stats.ComposeTime)

	// Stage 3: Export
	exportStart := time.Now()
	for _, format := range opts.Formats {
		data, err := export(wb, format)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", format, err)
		}
		result.Artifacts[format] = data
		_ = r.Cache.Set(ctx, r.Keyer.CompositeKey(result.InputHash, opts.ArtifactKeyOpts(format)), data, ArtifactTTL)
	}
	result.Stats.ExportTime = time.Since(exportStart)

	r.Logger.Info("exported",
		"formats", opts.Formats,
		"duration", result.Stats.ExportTime)

	return result, nil
}

// ResolveLayout returns the reference layout for opts, reading the
// annotations file when needed. A reference missing from the file is not an
// error; the default layout is used.
func (r *Runner) ResolveLayout(opts Options) (*layout.Descriptor, error) {
	if opts.Layout != nil || opts.Annotations == "" {
		return opts.Layout, nil
	}
	anns, err := layout.LoadAnnotations(opts.Annotations)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLayout, err, "annotations %s", opts.Annotations)
	}
	desc, ok := anns.Lookup(opts.Reference)
	if !ok {
		r.Logger.Warn("reference not annotated, using default layout", "reference", opts.Reference)
		return nil, nil
	}
	return desc, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) cached(ctx context.Context, hash string, opts Options) (map[string][]byte, bool) {
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		data, hit, err := r.Cache.Get(ctx, r.Keyer.CompositeKey(hash, opts.ArtifactKeyOpts(format)))
		if err != nil || !hit {
			return nil, false
		}
		artifacts[format] = data
	}
	return artifacts, true
}

func export(wb *workbench.Workbench, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := wb.ExportPNG(&buf); err != nil {
			return nil, err
		}
	case FormatBase:
		img, err := wb.CaptureBase()
		if err != nil {
			return nil, err
		}
		if err := canvas.WritePNG(&buf, img); err != nil {
			return nil, err
		}
	case FormatJSON:
		return wb.Surface().Snapshot()
	default:
		return nil, ValidateFormat(format)
	}
	return buf.Bytes(), nil
}

// inputHash identifies everything that shapes the composition. Sources are
// hashed by name, so a changed file needs Refresh.
func inputHash(opts Options) string {
	data, _ := json.Marshal(struct {
		Chart      string             `json:"chart"`
		Title      string             `json:"title"`
		Pictograms []string           `json:"pictograms"`
		Layout     *layout.Descriptor `json:"layout"`
		Background string             `json:"background"`
	}{opts.Chart, opts.Title, opts.Pictograms, opts.Layout, opts.Background})
	return cache.Hash(data)
}
