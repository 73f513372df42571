package compositor

import (
	"github.com/yczddgj/chartgalaxy/pkg/canvas"
)

// SavedPositions is the placement of the current elements captured before a
// position-preserving update.
type SavedPositions struct {
	Chart      *canvas.Transform  `json:"chart,omitempty"`
	Title      *canvas.Transform  `json:"title,omitempty"`
	Pictograms []canvas.Transform `json:"pictograms,omitempty"`
}

// Empty reports whether nothing was captured.
func (s SavedPositions) Empty() bool {
	return s.Chart == nil && s.Title == nil && len(s.Pictograms) == 0
}

// CaptureSavedPositions records the transform of every element by role. On
// a well-formed surface this is the same as reading index 0 as the chart,
// index 1 as the title and the rest as pictograms.
func CaptureSavedPositions(surface *canvas.Surface) SavedPositions {
	var out SavedPositions
	for _, e := range surface.Elements() {
		t := e.Transform
		switch e.Kind {
		case canvas.KindChart:
			if out.Chart == nil {
				out.Chart = &t
			}
		case canvas.KindTitle:
			if out.Title == nil {
				out.Title = &t
			}
		case canvas.KindPictogram:
			out.Pictograms = append(out.Pictograms, t)
		}
	}
	return out
}
