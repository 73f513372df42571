// Package layout computes where the chart, title and pictogram of a
// composition go on the canvas.
//
// Everything in this package is pure: the same inputs always produce the same
// [Slot] and nothing here touches images or the network. The compositor feeds
// the results into the drawing surface and later asks [Params.FitTitle] to
// correct the title once the chart's real rendered bounds are known.
//
// # Slots
//
// A [Slot] is a center point plus a maximum box. Images placed into a slot are
// scaled by [FitScale] (never upscaled) and centered on the slot center.
//
// # Reference layouts
//
// A [Descriptor] holds normalized boxes taken from a reference infographic,
// usually imported from a CVAT annotations file with [ParseAnnotations].
// [Descriptor.Slots] maps those boxes onto the canvas, keeping the reference
// aspect ratio and centering it inside a fixed padding.
//
// # Titles
//
// Without a reference, the title sits above the chart. [Params.TitleSlot]
// gives the initial box and [Params.WidthRatio] picks how wide the title
// should be relative to the chart from the title graphic's aspect ratio:
// boxy graphics get the compact ratio, banners the wide one.
package layout
