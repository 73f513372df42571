package assets

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// Decode turns encoded bytes into an image. The media type is a hint; when
// it is empty or generic the content is sniffed.
func Decode(data []byte, mediaType string) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeImageDecode, "empty image data")
	}
	if isSVG(data, mediaType) {
		return RasterizeSVG(data, 0)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageDecode, err, "decode image")
	}
	return img, nil
}

func isSVG(data []byte, mediaType string) bool {
	if strings.Contains(mediaType, "svg") {
		return true
	}
	head := data[:min(len(data), 512)]
	head = bytes.TrimSpace(head)
	return bytes.HasPrefix(head, []byte("<svg")) ||
		(bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg")))
}

func isHTML(data []byte, mediaType string) bool {
	if strings.Contains(mediaType, "html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(data[:min(len(data), 256)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
