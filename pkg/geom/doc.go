// Package geom provides the small set of 2D primitives used by the layout,
// placement and canvas packages.
//
// Coordinates are canvas pixels with the origin at the top-left corner and
// Y growing downwards. Rectangles are stored as edges (Left, Top, Right,
// Bottom) so overlap tests and clamping read directly; use [FromCenter] to
// build one from a center point and a size, which is how every element in a
// composition is positioned.
package geom
