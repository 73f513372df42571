// Package pipeline runs a composition end to end in one call.
//
// This package implements the load → compose → export flow used by the
// CLI's compose command and the server's stateless endpoints. Interactive
// editing goes through pkg/workbench directly; the pipeline builds a
// throwaway workbench per run.
//
// # Stages
//
//  1. Layout: use the given descriptor, or look the reference up in an
//     annotations file
//  2. Compose: a fresh composite of chart, title and pictograms
//  3. Export: one artifact per requested format
//
// # Usage
//
//	runner := pipeline.NewRunner(loader, cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Chart:   "chart.png",
//	    Title:   "title.png",
//	    Formats: []string{"png"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	png := result.Artifacts["png"]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/cache"
	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/layout"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// Format constants for output artifacts.
const (
	// FormatPNG is the full composition cropped to its content.
	FormatPNG = "png"
	// FormatBase is chart and title only on a transparent background.
	FormatBase = "base"
	// FormatJSON is the surface snapshot.
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatPNG:  true,
	FormatBase: true,
	FormatJSON: true,
}

// ArtifactTTL is how long exported artifacts stay cached.
const ArtifactTTL = 24 * time.Hour

// =============================================================================
// Options
// =============================================================================

// Options describes one run. It supports JSON for API requests.
type Options struct {
	Chart      string   `json:"chart"`
	Title      string   `json:"title,omitempty"`
	Pictograms []string `json:"pictograms,omitempty"`

	// Layout is the reference layout. When nil and Annotations is set, the
	// layout is looked up there by Reference.
	Layout      *layout.Descriptor `json:"layout,omitempty"`
	Annotations string             `json:"annotations,omitempty"`
	Reference   string             `json:"reference,omitempty"`

	Background string   `json:"background,omitempty"`
	Formats    []string `json:"formats,omitempty"`
	Padding    float64  `json:"padding,omitempty"`
	Multiplier float64  `json:"multiplier,omitempty"`
	Refresh    bool     `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger    *log.Logger        `json:"-"`
	Workbench []workbench.Option `json:"-"`

	validated bool
}

// Result contains the outputs of a run.
type Result struct {
	// InputHash identifies the inputs for caching.
	InputHash string

	// Artifacts contains exported outputs keyed by format.
	Artifacts map[string][]byte

	// Placement is how the first pictogram was placed, if one was.
	Placement *placer.Result

	// Skipped lists sources that failed to load.
	Skipped []string

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains run statistics.
type Stats struct {
	Elements    int
	LayoutTime  time.Duration
	ComposeTime time.Duration
	ExportTime  time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	ArtifactHit bool // Whether every artifact came from cache
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: png, base, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Calling it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Chart == "" && o.Title == "" && len(o.Pictograms) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one of chart, title or pictograms is required")
	}
	for _, src := range append([]string{o.Chart, o.Title}, o.Pictograms...) {
		if src == "" {
			continue
		}
		if err := errors.ValidateSource(src); err != nil {
			return err
		}
	}
	if o.Annotations != "" && o.Layout == nil && o.Reference == "" {
		return errors.New(errors.ErrCodeInvalidInput, "reference is required with annotations")
	}
	if o.Layout != nil {
		if err := o.Layout.Validate(); err != nil {
			return err
		}
	}

	if len(o.Formats) == 0 {
		o.Formats = []string{FormatPNG}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Padding == 0 {
		o.Padding = canvas.DefaultExportPadding
	}
	if o.Multiplier == 0 {
		o.Multiplier = canvas.DefaultExportMultiplier
	}
	if o.Padding < 0 || o.Multiplier < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "padding and multiplier must not be negative")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ArtifactKeyOpts returns cache key options for one format.
func (o *Options) ArtifactKeyOpts(format string) cache.CompositeKeyOpts {
	return cache.CompositeKeyOpts{
		Format:     format,
		Padding:    o.Padding,
		Multiplier: o.Multiplier,
	}
}
