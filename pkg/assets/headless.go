package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// DefaultRenderTimeout bounds a single headless render.
const DefaultRenderTimeout = 30 * time.Second

// HeadlessRenderer screenshots HTML chart templates in headless Chrome.
// Each Render starts its own browser; it is meant for occasional chart
// renders, not throughput.
type HeadlessRenderer struct {
	// Selector is the element to capture. Defaults to "svg".
	Selector string
	// Width and Height set the browser window. Zero keeps Chrome's default.
	Width, Height int
	// Timeout bounds navigation and capture.
	Timeout time.Duration
	// ExecPath overrides the Chrome binary.
	ExecPath string
}

// NewHeadlessRenderer returns a renderer capturing the first svg element.
func NewHeadlessRenderer() *HeadlessRenderer {
	return &HeadlessRenderer{Selector: "svg", Timeout: DefaultRenderTimeout}
}

// Render loads page (an HTML document or an http(s)/file URL) and returns a
// screenshot of the selected element.
func (r *HeadlessRenderer) Render(ctx context.Context, page string) (image.Image, error) {
	buf, err := r.Screenshot(ctx, page)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageDecode, err, "decode screenshot")
	}
	return img, nil
}

// Screenshot is Render without decoding: it returns the PNG bytes.
func (r *HeadlessRenderer) Screenshot(ctx context.Context, page string) ([]byte, error) {
	selector := r.Selector
	if selector == "" {
		selector = "svg"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Headless)
	if r.Width > 0 && r.Height > 0 {
		opts = append(opts, chromedp.WindowSize(r.Width, r.Height))
	}
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL(page)),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Screenshot(selector, &buf, chromedp.ByQuery),
	)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "headless render")
		}
		return nil, errors.Wrap(errors.ErrCodeImageFetch, err, "headless render")
	}
	if len(buf) == 0 {
		return nil, errors.New(errors.ErrCodeImageFetch, "headless render produced no image")
	}
	return buf, nil
}

// pageURL turns inline HTML into a data URL; URLs pass through.
func pageURL(page string) string {
	for _, p := range []string{"http://", "https://", "file://", "data:"} {
		if strings.HasPrefix(page, p) {
			return page
		}
	}
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(page))
}
