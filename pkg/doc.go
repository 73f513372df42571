// Package pkg provides the core libraries for chartgalaxy infographic
// composition.
//
// # Overview
//
// Chartgalaxy takes a rendered chart, a title image and any number of
// pictograms and arranges them on a fixed-size canvas. Titles follow a
// named layout template, pictograms are placed by reference point, by a
// transparent region sampled out of the chart, or beside the chart. The
// result can be edited with undo and quick-redo, exported at 2x and sent to
// a backend for refinement.
//
// # Architecture
//
// The typical data flow:
//
//	chart / title / pictogram sources
//	         ↓
//	    [assets] package (decode PNG, JPEG, WebP, BMP, SVG; headless capture)
//	         ↓
//	    [compositor] package (layout template + [placer] + [sampler])
//	         ↓
//	    [canvas] package (surface, snapshots, export)
//	         ↓
//	    [workbench] package (history, coalescing, sessions, refinement)
//	         ↓
//	    PNG / base capture / JSON snapshot
//
// # Quick Start
//
// Compose and export a chart with a title and one pictogram:
//
//	loader := assets.NewLoader()
//	wb := workbench.New(loader)
//	defer wb.Close()
//
//	_, err := wb.Compose(ctx, workbench.Request{Request: compositor.Request{
//	    ChartSource:      "chart.png",
//	    TitleSource:      "title.png",
//	    PictogramSources: []string{"icon.svg"},
//	}})
//	if err != nil {
//	    return err
//	}
//	return wb.ExportPNG(out)
//
// # Main Packages
//
// ## Composition
//
// [layout] - Layout templates: title anchor, chart offset, pictogram hints.
//
// [sampler] - Alpha sampling for transparent regions and content trimming.
//
// [placer] - Pictogram placement with reference, transparent and outside
// strategies.
//
// [compositor] - Builds a surface from sources, in fresh or preserve mode.
//
// [canvas] - Element surface, change events, snapshots and flattening.
//
// ## Editing
//
// [history] - Linear undo history, quick-redo stack and debounced recorder.
//
// [workbench] - The editing session: compose, modify, delete, undo, export.
//
// [session] - Persisted sessions in memory, on disk or in Redis.
//
// ## Backend
//
// [backend] - HTTP client for layout, material and generation endpoints.
//
// [poller] - Status polling until a generation step completes.
//
// [refine] - Final-export refinement and the variant gallery (memory or
// MongoDB).
//
// ## Infrastructure
//
// [pipeline] - Cached end-to-end composition used by the CLI and server.
//
// [cache] - Content-addressed caches: null, file and Redis.
//
// [config] - TOML configuration with defaults.
//
// [errors] - Coded errors shared by every package and mapped to HTTP status.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test -tags integration ./pkg/...  # Include Redis, MongoDB and Chrome
//
// [assets]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/assets
// [compositor]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/compositor
// [placer]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/placer
// [sampler]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/sampler
// [canvas]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/canvas
// [workbench]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/workbench
// [layout]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/layout
// [history]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/history
// [session]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/session
// [backend]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/backend
// [poller]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/poller
// [refine]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/refine
// [pipeline]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/cache
// [config]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/config
// [errors]: https://pkg.go.dev/github.com/yczddgj/chartgalaxy/pkg/errors
package pkg
