// Package compositor loads chart, title and pictogram images onto a
// [canvas.Surface] and positions them.
//
// # Modes
//
// [Compositor.Composite] runs in one of two modes selected by
// Request.PreservePositions:
//
//   - Recreate (fresh): the surface is cleared and every element is created
//     from the reference layout, or from defaults when there is none. The
//     title is corrected against the chart's real rendered bounds and the
//     first pictogram is placed by the [placer] package.
//   - MutateInPlace (position-preserving): the current transforms are saved
//     as [SavedPositions] and each existing element gets its image swapped
//     without moving. A failed swap falls back to removing the element and
//     recreating it with the saved transform; if that fails too, Composite
//     returns the error.
//
// Elements always end up ordered chart, title, pictograms. Later steps use
// the actual bounds of earlier ones, so the steps run strictly in that order.
//
// A decode failure in fresh mode only drops that element.
//
// # Concurrency
//
// A Compositor has no lock of its own. Callers must not run two composites
// on the same surface at once; [Gate] is the busy flag the workbench uses to
// drop overlapping requests.
package compositor
