package cache

import (
	"fmt"
	"strings"
)

// Keyer derives cache keys for each kind of cached value.
type Keyer interface {
	// AssetKey names raw bytes fetched from a URL.
	AssetKey(url string) string

	// RenderKey names a headless-browser screenshot of a page.
	RenderKey(page string, opts RenderKeyOpts) string

	// RasterKey names an SVG rasterized at a given width.
	RasterKey(svgHash string, width int) string

	// CompositeKey names an exported composition in one format.
	CompositeKey(inputHash string, opts CompositeKeyOpts) string
}

// RenderKeyOpts are the inputs that change a headless render.
type RenderKeyOpts struct {
	Selector string `json:"selector"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// CompositeKeyOpts are the export settings that change an artifact.
type CompositeKeyOpts struct {
	Format     string  `json:"format"`
	Padding    float64 `json:"padding"`
	Multiplier float64 `json:"multiplier"`
}

// DefaultKeyer produces keys of the form "kind:hash".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// AssetKey strips the cache-busting timestamp so a re-fetch of the same
// asset within the TTL still hits.
func (DefaultKeyer) AssetKey(url string) string {
	return hashKey("asset", stripBuster(url))
}

func (DefaultKeyer) RenderKey(page string, opts RenderKeyOpts) string {
	return hashKey("render", page, opts)
}

func (DefaultKeyer) RasterKey(svgHash string, width int) string {
	return fmt.Sprintf("raster:%s:%d", svgHash, width)
}

func (DefaultKeyer) CompositeKey(inputHash string, opts CompositeKeyOpts) string {
	return hashKey("composite", inputHash, opts)
}

func stripBuster(url string) string {
	for _, sep := range []string{"?t=", "&t="} {
		if i := strings.LastIndex(url, sep); i >= 0 {
			rest := url[i+len(sep):]
			if j := strings.IndexByte(rest, '&'); j >= 0 {
				return url[:i+1] + rest[j+1:]
			}
			return url[:i]
		}
	}
	return url
}

var _ Keyer = DefaultKeyer{}
