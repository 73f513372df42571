package layout

import (
	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// Default geometry constants.
const (
	DefaultTitleBaseWidth       = 700
	DefaultTitleBaseHeight      = 150
	DefaultTitleMinTop          = 50
	DefaultTitleAspectThreshold = 1.9
	DefaultTitleCompactRatio    = 0.55
	DefaultTitleWideRatio       = 0.65
	DefaultTitlePaddingRatio    = 0.02
	DefaultReferencePadding     = 40
	DefaultReferenceTitlePad    = 20
	DefaultReferenceTitleMinTop = 10
	DefaultChartWidthFraction   = 0.9
	DefaultChartHeightFraction  = 0.7
	DefaultPictogramSize        = 150
	DefaultPictogramSlotSize    = 200
	DefaultPictogramSlotInset   = 120
	DefaultTitleSlotWidth       = 400
	DefaultTitleSlotHeight      = 150
	DefaultTitleSlotTop         = 80
)

// Params holds the tunable constants used by the geometry functions.
// The zero value is not useful; start from [DefaultParams].
type Params struct {
	TitleBaseWidth       float64 `json:"title_base_width" toml:"title_base_width"`
	TitleBaseHeight      float64 `json:"title_base_height" toml:"title_base_height"`
	TitleMinTop          float64 `json:"title_min_top" toml:"title_min_top"`
	TitleAspectThreshold float64 `json:"title_aspect_threshold" toml:"title_aspect_threshold"`
	TitleCompactRatio    float64 `json:"title_compact_ratio" toml:"title_compact_ratio"`
	TitleWideRatio       float64 `json:"title_wide_ratio" toml:"title_wide_ratio"`
	// TitlePaddingRatio is the gap between title and chart as a fraction of
	// canvas height.
	TitlePaddingRatio float64 `json:"title_padding_ratio" toml:"title_padding_ratio"`

	ReferencePadding     float64 `json:"reference_padding" toml:"reference_padding"`
	ReferenceTitlePad    float64 `json:"reference_title_padding" toml:"reference_title_padding"`
	ReferenceTitleMinTop float64 `json:"reference_title_min_top" toml:"reference_title_min_top"`

	ChartWidthFraction  float64 `json:"chart_width_fraction" toml:"chart_width_fraction"`
	ChartHeightFraction float64 `json:"chart_height_fraction" toml:"chart_height_fraction"`
	PictogramSize       float64 `json:"pictogram_size" toml:"pictogram_size"`
}

// DefaultParams returns the stock geometry constants.
func DefaultParams() Params {
	return Params{
		TitleBaseWidth:       DefaultTitleBaseWidth,
		TitleBaseHeight:      DefaultTitleBaseHeight,
		TitleMinTop:          DefaultTitleMinTop,
		TitleAspectThreshold: DefaultTitleAspectThreshold,
		TitleCompactRatio:    DefaultTitleCompactRatio,
		TitleWideRatio:       DefaultTitleWideRatio,
		TitlePaddingRatio:    DefaultTitlePaddingRatio,
		ReferencePadding:     DefaultReferencePadding,
		ReferenceTitlePad:    DefaultReferenceTitlePad,
		ReferenceTitleMinTop: DefaultReferenceTitleMinTop,
		ChartWidthFraction:   DefaultChartWidthFraction,
		ChartHeightFraction:  DefaultChartHeightFraction,
		PictogramSize:        DefaultPictogramSize,
	}
}

// Validate checks that every constant is in a usable range.
func (p Params) Validate() error {
	switch {
	case p.TitleBaseWidth <= 0 || p.TitleBaseHeight <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "title base size must be positive")
	case p.TitleAspectThreshold <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "title aspect threshold must be positive")
	case p.TitleCompactRatio <= 0 || p.TitleWideRatio <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "title width ratios must be positive")
	case p.ReferencePadding < 0 || p.TitleMinTop < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "paddings cannot be negative")
	case p.ChartWidthFraction <= 0 || p.ChartWidthFraction > 1 ||
		p.ChartHeightFraction <= 0 || p.ChartHeightFraction > 1:
		return errors.New(errors.ErrCodeInvalidConfig, "chart fractions must be in (0, 1]")
	case p.PictogramSize <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "pictogram size must be positive")
	}
	return nil
}
