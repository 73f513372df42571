// Package canvas is the drawing surface compositions are built on.
//
// A [Surface] holds an ordered list of [Element] values. Order is z-order
// and also positional meaning: index 0 is the chart, index 1 the title and
// everything after that a pictogram. Elements carry a [Transform] (position,
// scale, rotation, anchor) and a decoded image; the surface memoizes images
// by source so a [Surface.Snapshot] taken earlier can be restored without
// refetching anything.
//
// Mutations publish [Event] values to listeners registered with
// [Surface.OnChange]. Listeners run after the surface lock is released, so
// they may call back into the surface (the history recorder snapshots from
// its listener).
//
// # Rendering
//
// [Surface.Capture] rasterizes a region of the surface at a multiplier using
// Catmull-Rom resampling from golang.org/x/image/draw. [Surface.Export]
// crops to the visible content plus padding, the contract for downloading a
// composition.
package canvas
