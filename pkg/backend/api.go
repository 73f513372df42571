package backend

import (
	"context"
	"net/url"

	"github.com/yczddgj/chartgalaxy/pkg/assets"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/layout"
	"github.com/yczddgj/chartgalaxy/pkg/poller"
)

// Status fetches the current job status. It is never retried.
func (c *Client) Status(ctx context.Context) (*poller.Status, error) {
	var raw []byte
	if err := c.getJSON(ctx, "api/status", &raw); err != nil {
		return nil, err
	}
	return poller.Decode(raw)
}

// Layout returns the reference layout for the selected reference image, or
// nil when the backend has none.
func (c *Client) Layout(ctx context.Context) (*layout.Descriptor, error) {
	var resp struct {
		Layout *layout.Descriptor `json:"layout"`
	}
	err := c.retried(ctx, func() error {
		return c.getJSON(ctx, "api/layout", &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Layout, nil
}

// Titles lists the generated title option names.
func (c *Client) Titles(ctx context.Context) ([]string, error) {
	return c.names(ctx, "api/titles")
}

// Pictograms lists the generated pictogram option names.
func (c *Client) Pictograms(ctx context.Context) ([]string, error) {
	return c.names(ctx, "api/pictograms")
}

func (c *Client) names(ctx context.Context, path string) ([]string, error) {
	var out []string
	err := c.retried(ctx, func() error {
		return c.getJSON(ctx, path, &out)
	})
	return out, err
}

type startResponse struct {
	Status string `json:"status"`
}

// start fires a job trigger and checks the acknowledgement.
func (c *Client) start(ctx context.Context, segments ...string) error {
	path := "api"
	for _, s := range segments {
		path += "/" + url.PathEscape(s)
	}
	var resp startResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return err
	}
	return checkStarted(resp, path)
}

func checkStarted(resp startResponse, what string) error {
	if resp.Status != "started" {
		return errors.New(errors.ErrCodeJobFailed, "%s: unexpected status %q", what, resp.Status)
	}
	return nil
}

// StartFindReference searches for reference layouts compatible with a data
// file. Completion is reported under poller.StepFindReference.
func (c *Client) StartFindReference(ctx context.Context, dataFile string) error {
	return c.start(ctx, "start_find_reference", dataFile)
}

// StartLayoutExtraction extracts style and layout from a reference image.
func (c *Client) StartLayoutExtraction(ctx context.Context, reference, dataFile string) error {
	return c.start(ctx, "start_layout_extraction", reference, dataFile)
}

// StartTitleGeneration generates title options, reusing cached results.
func (c *Client) StartTitleGeneration(ctx context.Context, dataFile string) error {
	return c.start(ctx, "start_title_generation", dataFile)
}

// RegenerateTitle generates title options, bypassing the backend cache.
func (c *Client) RegenerateTitle(ctx context.Context, dataFile string) error {
	return c.start(ctx, "regenerate_title", dataFile)
}

// StartPictogramGeneration generates pictogram options for a title.
func (c *Client) StartPictogramGeneration(ctx context.Context, title string) error {
	return c.start(ctx, "start_pictogram_generation", title)
}

// RegeneratePictogram generates pictogram options, bypassing the cache.
func (c *Client) RegeneratePictogram(ctx context.Context, title string) error {
	return c.start(ctx, "regenerate_pictogram", title)
}

// Materials identifies the assets a refined variant was produced from.
type Materials struct {
	Title     string `json:"title" bson:"title"`
	Pictogram string `json:"pictogram" bson:"pictogram"`
	ChartType string `json:"chart_type" bson:"chart_type"`
}

// ExportRequest submits a flattened composition for refinement.
type ExportRequest struct {
	Materials
	PNGBase64       string `json:"png_base64"`
	BackgroundColor string `json:"background_color"`
	ForceRegenerate bool   `json:"force_regenerate"`
}

// StartExport submits an export job. Completion is reported under
// poller.StepFinalExport with the refined image path in the payload.
func (c *Client) StartExport(ctx context.Context, req ExportRequest) error {
	if req.PNGBase64 == "" {
		return errors.New(errors.ErrCodeInvalidInput, "export requires image data")
	}
	var resp startResponse
	if err := c.postJSON(ctx, "api/export_final", req, &resp); err != nil {
		return err
	}
	return checkStarted(resp, "export_final")
}

// Version is one refined variant produced for a set of materials.
type Version struct {
	Version   int    `json:"version" bson:"version"`
	URL       string `json:"url" bson:"url"`
	Timestamp string `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
	Method    string `json:"method,omitempty" bson:"method,omitempty"`
}

// MaterialHistory lists refined variants previously produced for m.
type MaterialHistory struct {
	Found    bool      `json:"found"`
	Total    int       `json:"total_versions"`
	Versions []Version `json:"versions"`
}

// MaterialHistory fetches the refined variants for m.
func (c *Client) MaterialHistory(ctx context.Context, m Materials) (*MaterialHistory, error) {
	var out MaterialHistory
	err := c.retried(ctx, func() error {
		return c.postJSON(ctx, "api/material_history", m, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AssetURL resolves a backend-relative asset path and appends a
// cache-busting timestamp. Absolute and data URLs are returned with only the
// timestamp applied.
func (c *Client) AssetURL(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.Scheme != "" {
		return assets.CacheBust(path, c.now())
	}
	return assets.CacheBust(c.resolve(path), c.now())
}
