package refine

import (
	"bytes"
	"context"
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/assets"
	"github.com/yczddgj/chartgalaxy/pkg/backend"
	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/poller"
)

// Polling limits for the export job.
const (
	PollInterval    = time.Second
	PollMaxAttempts = 120
)

// downloadPath serves the most recent export when the status carries no path.
const downloadPath = "api/download_final"

// Backend is the part of backend.Client the runner needs.
type Backend interface {
	poller.Source
	StartExport(ctx context.Context, req backend.ExportRequest) error
	MaterialHistory(ctx context.Context, m backend.Materials) (*backend.MaterialHistory, error)
	AssetURL(path string) string
}

// Request describes one refinement.
type Request struct {
	Image      image.Image
	Background string
	Materials  backend.Materials
	// Force asks the backend to regenerate even if a cached variant exists.
	Force bool
}

// Result is the outcome of a refinement.
type Result struct {
	Latest   Variant
	Variants []Variant
}

// Runner submits compositions for refinement.
type Runner struct {
	backend  Backend
	gallery  Gallery
	poller   *poller.Poller
	interval time.Duration
	attempts int
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithGallery sets where variants are stored. Defaults to a MemoryStore.
func WithGallery(g Gallery) Option {
	return func(r *Runner) {
		if g != nil {
			r.gallery = g
		}
	}
}

// WithPollInterval overrides the status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithMaxAttempts bounds how many status checks a refinement waits for.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner returns a runner using b.
func NewRunner(b Backend, opts ...Option) *Runner {
	r := &Runner{
		backend:  b,
		gallery:  NewMemoryStore(),
		interval: PollInterval,
		attempts: PollMaxAttempts,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.poller = poller.New(b,
		poller.WithInterval(r.interval),
		poller.WithMaxAttempts(r.attempts),
		poller.WithLogger(r.logger),
	)
	return r
}

// Gallery returns the variant store.
func (r *Runner) Gallery() Gallery { return r.gallery }

// Run submits req and waits for the refined image.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Image == nil {
		return nil, errors.New(errors.ErrCodeNothingToExport, "no image to refine")
	}
	var buf bytes.Buffer
	if err := canvas.WritePNG(&buf, req.Image); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode export")
	}
	bg := req.Background
	if bg == "" {
		bg = canvas.DefaultBackground
	}

	start := time.Now()
	err := r.backend.StartExport(ctx, backend.ExportRequest{
		Materials:       req.Materials,
		PNGBase64:       assets.EncodeDataURL("image/png", buf.Bytes()),
		BackgroundColor: bg,
		ForceRegenerate: req.Force,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("refinement started", "title", req.Materials.Title, "chart_type", req.Materials.ChartType, "force", req.Force)

	st, err := r.poller.Poll(ctx, poller.StepFinalExport)
	if err != nil {
		return nil, err
	}

	path := downloadPath
	if p, ok := st.Export(); ok && p.FinalImagePath != "" {
		path = p.FinalImagePath
	}
	latest := Variant{URL: r.backend.AssetURL(path), AddedAt: r.now()}
	r.logger.Info("refinement complete", "duration", time.Since(start).Round(time.Millisecond), "progress", st.Progress)

	variants, err := r.Replay(ctx, req.Materials)
	if err != nil {
		r.logger.Warn("material history unavailable", "err", err)
		variants = nil
	}
	if len(variants) > 0 {
		last := variants[len(variants)-1]
		latest.Version, latest.Method, latest.Timestamp = last.Version, last.Method, last.Timestamp
	} else {
		if err := r.gallery.Add(ctx, req.Materials, latest); err != nil {
			r.logger.Warn("gallery write failed", "err", err)
		}
		variants = []Variant{latest}
	}
	return &Result{Latest: latest, Variants: variants}, nil
}

// Replay fetches the backend's variant history for m and stores it in the
// gallery.
func (r *Runner) Replay(ctx context.Context, m backend.Materials) ([]Variant, error) {
	h, err := r.backend.MaterialHistory(ctx, m)
	if err != nil {
		return nil, err
	}
	variants := FromHistory(h, r.backend.AssetURL, r.now())
	if len(variants) == 0 {
		return nil, nil
	}
	if err := r.gallery.Replace(ctx, m, variants); err != nil {
		return nil, err
	}
	return variants, nil
}
