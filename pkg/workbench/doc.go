// Package workbench is the calling layer around the compositor.
//
// A [Workbench] owns one drawing surface and everything that acts on it:
//
//   - the compositor, with a busy gate so composites never overlap
//   - the history manager and the debounced recorder feeding it
//   - a coalescing debouncer for bursts of asset changes
//   - an optional refine runner for AI export
//
// Every composite takes an explicit [Request]. The workbench keeps the last
// request only so sessions can be saved and resumed.
//
//	wb := workbench.New(loader, workbench.WithLogger(logger))
//	defer wb.Close()
//	if _, err := wb.Compose(ctx, workbench.Request{Request: compositor.Request{
//	    ChartSource: "chart.png",
//	    TitleSource: "title.png",
//	}}); err != nil {
//	    return err
//	}
//	img, err := wb.Export()
//
// The CLI, the editor and the HTTP server all go through this package; none
// of them touch the surface or the history directly.
package workbench
