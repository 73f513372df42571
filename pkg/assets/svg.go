package assets

import (
	"bytes"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// DefaultSVGWidth is used when an SVG has no usable viewBox.
const DefaultSVGWidth = 800

// RasterizeSVG renders an SVG document. A positive width scales the output
// to that width preserving aspect ratio; zero renders at the viewBox size.
func RasterizeSVG(data []byte, width int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageDecode, err, "parse svg")
	}

	w, h := icon.ViewBox.W, icon.ViewBox.H
	if w <= 0 || h <= 0 {
		w, h = DefaultSVGWidth, DefaultSVGWidth
	}
	scale := 1.0
	if width > 0 {
		scale = float64(width) / w
	}
	outW := max(int(math.Ceil(w*scale)), 1)
	outH := max(int(math.Ceil(h*scale)), 1)

	icon.SetTarget(0, 0, float64(outW), float64(outH))
	img := image.NewRGBA(image.Rect(0, 0, outW, outH))
	scanner := rasterx.NewScannerGV(outW, outH, img, img.Bounds())
	raster := rasterx.NewDasher(outW, outH, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}
