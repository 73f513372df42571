package layout

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

type annotationFile struct {
	Images []annotationImage `xml:"image"`
}

type annotationImage struct {
	Name   string          `xml:"name,attr"`
	Width  float64         `xml:"width,attr"`
	Height float64         `xml:"height,attr"`
	Boxes  []annotationBox `xml:"box"`
}

type annotationBox struct {
	Label string  `xml:"label,attr"`
	XTL   float64 `xml:"xtl,attr"`
	YTL   float64 `xml:"ytl,attr"`
	XBR   float64 `xml:"xbr,attr"`
	YBR   float64 `xml:"ybr,attr"`
}

// Annotations maps reference image names to their layouts.
type Annotations map[string]*Descriptor

// ParseAnnotations reads a CVAT-style annotations document. Boxes labelled
// chart, title or image are normalized against the image size; other labels
// are ignored.
func ParseAnnotations(r io.Reader) (Annotations, error) {
	var doc annotationFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLayout, err, "parse annotations")
	}

	out := make(Annotations, len(doc.Images))
	for _, img := range doc.Images {
		if img.Width <= 0 || img.Height <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidLayout, "image %q has no size", img.Name)
		}
		d := &Descriptor{Width: img.Width, Height: img.Height}
		for _, b := range img.Boxes {
			box := &Box{
				X:      b.XTL / img.Width,
				Y:      b.YTL / img.Height,
				Width:  (b.XBR - b.XTL) / img.Width,
				Height: (b.YBR - b.YTL) / img.Height,
			}
			switch b.Label {
			case "chart":
				d.Chart = box
			case "title":
				d.Title = box
			case "image":
				d.Image = box
			}
		}
		out[img.Name] = d
	}
	return out, nil
}

// LoadAnnotations parses the annotations file at path.
func LoadAnnotations(path string) (Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()
	return ParseAnnotations(f)
}

// Lookup returns the layout for a reference image. Only the base name of ref
// is used, so full paths to the reference image work.
func (a Annotations) Lookup(ref string) (*Descriptor, bool) {
	d, ok := a[filepath.Base(ref)]
	return d, ok
}
