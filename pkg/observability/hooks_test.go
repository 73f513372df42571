package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type countingCache struct {
	Noop
	hits int
}

func (c *countingCache) OnCacheHit(context.Context, string) { c.hits++ }

func TestDefaultsAreNoop(t *testing.T) {
	Reset()
	if _, ok := Composite().(Noop); !ok {
		t.Errorf("Composite() = %T, want Noop", Composite())
	}
	if _, ok := Poll().(Noop); !ok {
		t.Errorf("Poll() = %T, want Noop", Poll())
	}
	if _, ok := Cache().(Noop); !ok {
		t.Errorf("Cache() = %T, want Noop", Cache())
	}
	if _, ok := HTTP().(Noop); !ok {
		t.Errorf("HTTP() = %T, want Noop", HTTP())
	}
}

func TestInstallPartial(t *testing.T) {
	Reset()
	defer Reset()

	c := &countingCache{}
	Install(Hooks{Cache: c})
	Cache().OnCacheHit(context.Background(), "asset")
	if c.hits != 1 {
		t.Errorf("hits = %d, want 1", c.hits)
	}
	if _, ok := Composite().(Noop); !ok {
		t.Error("installing cache hooks replaced composite hooks")
	}

	// Nil fields keep what is installed.
	Install(Hooks{})
	if Cache() != CacheHooks(c) {
		t.Error("Install(Hooks{}) replaced the cache hooks")
	}

	Reset()
	if _, ok := Cache().(Noop); !ok {
		t.Error("Reset() did not restore Noop")
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHooks(log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel}))
	ctx := context.Background()

	h.Composite.OnCompositeStart(ctx, "recreate")
	h.Composite.OnCompositeComplete(ctx, "recreate", 3, time.Millisecond, nil)
	h.Composite.OnCompositeComplete(ctx, "mutate", 0, time.Millisecond, errors.New("decode"))
	h.Composite.OnPlacement(ctx, "transparent")
	h.Poll.OnPollComplete(ctx, "title_generation", 4, time.Second, nil)
	h.Cache.OnCacheMiss(ctx, "render")
	h.HTTP.OnResponse(ctx, "GET", "localhost:5000", "/api/status", 200, time.Millisecond)

	out := buf.String()
	for _, want := range []string{"composite start", "composite done", "composite failed", "strategy=transparent", "step=title_generation", "cache miss", "status=200"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestLogHooksQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHooks(log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel}))
	h.Cache.OnCacheHit(context.Background(), "asset")
	if buf.Len() != 0 {
		t.Errorf("info-level logger wrote %q", buf.String())
	}
}
