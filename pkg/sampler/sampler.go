// Package sampler inspects image alpha channels to find empty regions and
// to trim transparent borders.
//
// [Params.FindTransparentRegion] walks an ordered list of candidate centers
// and scores each by the mean alpha of a sparse pixel grid plus a small
// penalty proportional to the candidate's position in the list, so earlier
// (preferred) candidates win when scores are close. [Params.Trim] crops an
// image to its visible content.
package sampler

import (
	"image"
	"image/draw"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// Default sampling constants.
const (
	DefaultMaxAlpha       = 35
	DefaultTrimAlpha      = 8
	DefaultPriorityWeight = 2
	DefaultStepDivisor    = 6
)

// Params controls sampling. Alpha values are on the 0-255 scale.
type Params struct {
	// MaxAlpha is the highest mean alpha a region may have to count as empty.
	MaxAlpha float64 `json:"max_alpha" toml:"max_alpha"`
	// TrimAlpha is the highest alpha treated as transparent when trimming.
	TrimAlpha uint8 `json:"trim_alpha" toml:"trim_alpha"`
	// PriorityWeight is added to a candidate's score per position in the
	// hint list.
	PriorityWeight float64 `json:"priority_weight" toml:"priority_weight"`
	// StepDivisor sets the grid step to region dimension / StepDivisor.
	StepDivisor float64 `json:"step_divisor" toml:"step_divisor"`
}

// DefaultParams returns the stock sampling constants.
func DefaultParams() Params {
	return Params{
		MaxAlpha:       DefaultMaxAlpha,
		TrimAlpha:      DefaultTrimAlpha,
		PriorityWeight: DefaultPriorityWeight,
		StepDivisor:    DefaultStepDivisor,
	}
}

// FindTransparentRegion returns the center of the most transparent region of
// the given size among hints, in image pixel coordinates. Candidates whose
// region would leave the image are skipped. The result is only accepted when
// its mean alpha is at most MaxAlpha; otherwise ok is false and the caller
// must fall back to another placement.
func (p Params) FindTransparentRegion(img image.Image, region geom.Size, hints []geom.Point) (center geom.Point, ok bool) {
	if img == nil || region.Empty() {
		return geom.Point{}, false
	}
	b := img.Bounds()
	if b.Empty() {
		return geom.Point{}, false
	}

	bestScore := math.Inf(1)
	bestAlpha := math.Inf(1)
	for i, c := range hints {
		left, top := c.X-region.W/2, c.Y-region.H/2
		if left < float64(b.Min.X) || top < float64(b.Min.Y) ||
			left+region.W > float64(b.Max.X) || top+region.H > float64(b.Max.Y) {
			continue
		}
		mean := p.meanAlpha(img, left, top, region)
		score := mean + float64(i)*p.PriorityWeight
		if score < bestScore {
			bestScore, bestAlpha, center = score, mean, c
		}
	}

	if math.IsInf(bestScore, 1) || bestAlpha > p.MaxAlpha {
		return geom.Point{}, false
	}
	return center, true
}

// MeanAlpha returns the sparse-grid mean alpha of the region of the given
// size centered on c. It does not check bounds beyond clipping samples to
// the image.
func (p Params) MeanAlpha(img image.Image, c geom.Point, region geom.Size) float64 {
	return p.meanAlpha(img, c.X-region.W/2, c.Y-region.H/2, region)
}

func (p Params) meanAlpha(img image.Image, left, top float64, region geom.Size) float64 {
	div := p.StepDivisor
	if div <= 0 {
		div = DefaultStepDivisor
	}
	stepX := math.Max(1, math.Floor(region.W/div))
	stepY := math.Max(1, math.Floor(region.H/div))

	b := img.Bounds()
	var samples []float64
	for y := top; y < top+region.H; y += stepY {
		for x := left; x < left+region.W; x += stepX {
			pt := image.Pt(int(x), int(y))
			if !pt.In(b) {
				continue
			}
			samples = append(samples, float64(alphaAt(img, pt.X, pt.Y)))
		}
	}
	if len(samples) == 0 {
		return 255
	}
	return stat.Mean(samples, nil)
}

// alphaAt returns the 8-bit alpha of the pixel at (x, y).
func alphaAt(img image.Image, x, y int) uint8 {
	switch m := img.(type) {
	case *image.NRGBA:
		return m.NRGBAAt(x, y).A
	case *image.RGBA:
		return m.RGBAAt(x, y).A
	}
	_, _, _, a := img.At(x, y).RGBA()
	return uint8(a >> 8)
}

// ContentBounds returns the smallest rectangle holding every pixel whose
// alpha exceeds TrimAlpha. It is empty when the image has no such pixel.
func (p Params) ContentBounds(img image.Image) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if alphaAt(img, x, y) <= p.TrimAlpha {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Trim crops img to its visible content. Fully transparent images are
// returned unchanged. The result's Bounds may not start at the origin.
func (p Params) Trim(img image.Image) image.Image {
	if img == nil {
		return nil
	}
	r := p.ContentBounds(img)
	if r.Empty() || r == img.Bounds() {
		return img
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
