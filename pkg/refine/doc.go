// Package refine sends a finished composition to the backend for AI
// refinement and keeps the gallery of refined variants.
//
// [Runner.Run] flattens nothing itself: the caller passes the exported
// image (normally a 2x render of the surface). The runner submits it, polls
// the final_export step once a second for up to two minutes, then asks the
// backend for every variant produced from the same title, pictogram and
// chart type and replays them into a [Gallery].
//
// Galleries are kept in memory ([MemoryStore]) or in MongoDB ([MongoStore]).
package refine
