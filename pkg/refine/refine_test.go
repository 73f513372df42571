package refine

import (
	"context"
	stderrors "errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yczddgj/chartgalaxy/pkg/backend"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/poller"
)

type fakeBackend struct {
	mu       sync.Mutex
	exports  []backend.ExportRequest
	statuses []*poller.Status
	calls    int
	history  *backend.MaterialHistory
	histErr  error
}

func (f *fakeBackend) Status(context.Context) (*poller.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.calls, len(f.statuses)-1)
	f.calls++
	return f.statuses[i], nil
}

func (f *fakeBackend) StartExport(_ context.Context, req backend.ExportRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports = append(f.exports, req)
	return nil
}

func (f *fakeBackend) MaterialHistory(context.Context, backend.Materials) (*backend.MaterialHistory, error) {
	return f.history, f.histErr
}

func (f *fakeBackend) AssetURL(path string) string { return "http://b/" + path }

func completedExport(path string) *poller.Status {
	return &poller.Status{
		Step: poller.StepFinalExport, State: poller.StateCompleted, Completed: true,
		Payload: &poller.ExportPayload{FinalImagePath: path},
	}
}

var materials = backend.Materials{Title: "title_0.png", Pictogram: "pictogram_0.png", ChartType: "bar"}

func TestRunReplaysHistory(t *testing.T) {
	fb := &fakeBackend{
		statuses: []*poller.Status{
			{Step: poller.StepFinalExport, State: poller.StateProcessing},
			completedExport("buffer/s/final.png"),
		},
		history: &backend.MaterialHistory{Found: true, Total: 2, Versions: []backend.Version{
			{Version: 2, URL: "currentfilepath/history_v2.jpg", Method: "ai"},
			{Version: 1, URL: "currentfilepath/history_v1.jpg"},
		}},
	}
	r := NewRunner(fb, WithPollInterval(time.Millisecond))

	res, err := r.Run(context.Background(), Request{
		Image:     image.NewRGBA(image.Rect(0, 0, 4, 4)),
		Materials: materials,
		Force:     true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fb.exports) != 1 {
		t.Fatalf("exports = %d", len(fb.exports))
	}
	sent := fb.exports[0]
	if !strings.HasPrefix(sent.PNGBase64, "data:image/png;base64,") || !sent.ForceRegenerate || sent.BackgroundColor != "#ffffff" {
		t.Errorf("export request = %+v", sent)
	}

	if res.Latest.URL != "http://b/buffer/s/final.png" || res.Latest.Version != 2 {
		t.Errorf("Latest = %+v", res.Latest)
	}
	if len(res.Variants) != 2 || res.Variants[0].Version != 1 || res.Variants[0].URL != "http://b/currentfilepath/history_v1.jpg" {
		t.Errorf("Variants = %+v", res.Variants)
	}

	stored, _ := r.Gallery().List(context.Background(), materials)
	if len(stored) != 2 {
		t.Errorf("gallery = %+v", stored)
	}
}

func TestRunWithoutHistory(t *testing.T) {
	fb := &fakeBackend{
		statuses: []*poller.Status{completedExport("")},
		histErr:  stderrors.New("backend down"),
	}
	g := NewMemoryStore()
	r := NewRunner(fb, WithPollInterval(time.Millisecond), WithGallery(g))

	res, err := r.Run(context.Background(), Request{Image: image.NewRGBA(image.Rect(0, 0, 2, 2)), Materials: materials})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Latest.URL != "http://b/api/download_final" {
		t.Errorf("Latest = %+v", res.Latest)
	}
	stored, _ := g.List(context.Background(), materials)
	if len(stored) != 1 {
		t.Errorf("gallery = %+v", stored)
	}
}

func TestRunJobFailed(t *testing.T) {
	fb := &fakeBackend{statuses: []*poller.Status{
		{Step: poller.StepFinalExport, State: poller.StateError, Completed: true, Progress: "model refused"},
	}}
	r := NewRunner(fb, WithPollInterval(time.Millisecond))

	_, err := r.Run(context.Background(), Request{Image: image.NewRGBA(image.Rect(0, 0, 2, 2))})
	if !errors.Is(err, errors.ErrCodeJobFailed) || !strings.Contains(err.Error(), "model refused") {
		t.Errorf("err = %v", err)
	}
}

func TestRunNoImage(t *testing.T) {
	r := NewRunner(&fakeBackend{})
	if _, err := r.Run(context.Background(), Request{}); !errors.Is(err, errors.ErrCodeNothingToExport) {
		t.Errorf("err = %v", err)
	}
}

func TestMemoryStoreAdd(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryStore()
	g.Add(ctx, materials, Variant{Version: 2, URL: "b"})
	g.Add(ctx, materials, Variant{Version: 1, URL: "a"})
	g.Add(ctx, materials, Variant{Version: 2, URL: "b2"})

	list, _ := g.List(ctx, materials)
	if len(list) != 2 || list[0].URL != "a" || list[1].URL != "b2" {
		t.Errorf("List = %+v", list)
	}

	other, _ := g.List(ctx, backend.Materials{Title: "x"})
	if len(other) != 0 {
		t.Errorf("unrelated key = %+v", other)
	}
}

func TestFromHistory(t *testing.T) {
	if got := FromHistory(&backend.MaterialHistory{Found: false}, nil, time.Now()); got != nil {
		t.Errorf("not found = %+v", got)
	}
	if got := FromHistory(nil, nil, time.Now()); got != nil {
		t.Errorf("nil = %+v", got)
	}
}
