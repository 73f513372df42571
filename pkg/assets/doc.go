// Package assets loads the images that make up a composition.
//
// A source is a data URL, an http(s) URL or a local file path. Raster data
// is decoded as PNG, JPEG, GIF, WebP or BMP; SVG charts are rasterized with
// oksvg; HTML chart templates are screenshotted in headless Chrome when a
// [HeadlessRenderer] is configured.
//
// [Loader] implements compositor.Loader. Remote bytes and renders can be
// kept in a cache.Cache; the cache-busting timestamp added by [CacheBust]
// is ignored when deriving keys.
package assets
