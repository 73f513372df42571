package assets

import (
	"context"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/buildinfo"
	"github.com/yczddgj/chartgalaxy/pkg/cache"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/observability"
)

// Defaults for remote fetches.
const (
	DefaultCacheTTL = 24 * time.Hour
	MaxImageBytes   = 32 << 20
)

// Renderer turns an HTML page into an image. *HeadlessRenderer implements it.
type Renderer interface {
	Render(ctx context.Context, page string) (image.Image, error)
}

// Loader fetches and decodes image sources.
type Loader struct {
	http     *http.Client
	cache    cache.Cache
	keyer    cache.Keyer
	ttl      time.Duration
	renderer Renderer
	baseDir  string
	logger   *log.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the HTTP client used for remote sources.
func WithHTTPClient(hc *http.Client) Option {
	return func(l *Loader) {
		if hc != nil {
			l.http = hc
		}
	}
}

// WithCache stores fetched bytes in c for ttl.
func WithCache(c cache.Cache, keyer cache.Keyer, ttl time.Duration) Option {
	return func(l *Loader) {
		if c != nil {
			l.cache = c
		}
		if keyer != nil {
			l.keyer = keyer
		}
		l.ttl = ttl
	}
}

// WithRenderer enables HTML sources.
func WithRenderer(r Renderer) Option {
	return func(l *Loader) { l.renderer = r }
}

// WithBaseDir resolves relative file paths against dir.
func WithBaseDir(dir string) Option {
	return func(l *Loader) { l.baseDir = dir }
}

// WithLogger sets the logger.
func WithLogger(lg *log.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader returns a Loader with no cache and no HTML support.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		http:   &http.Client{Timeout: 30 * time.Second},
		cache:  cache.NewNullCache(),
		keyer:  cache.NewDefaultKeyer(),
		ttl:    DefaultCacheTTL,
		logger: log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches src and decodes it.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	if err := errors.ValidateSource(src); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(src, "data:"):
		mediaType, data, err := DecodeDataURL(src)
		if err != nil {
			return nil, err
		}
		return l.decode(ctx, data, mediaType, src)

	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		data, mediaType, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return l.decode(ctx, data, mediaType, src)

	default:
		path := src
		if l.baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(l.baseDir, path)
		}
		if strings.EqualFold(filepath.Ext(path), ".html") && l.renderer != nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", path)
			}
			return l.render(ctx, "file://"+filepath.ToSlash(abs))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeImageFetch, err, "read %s", path)
		}
		return l.decode(ctx, data, "", src)
	}
}

// Bytes fetches src without decoding.
func (l *Loader) Bytes(ctx context.Context, src string) ([]byte, string, error) {
	if err := errors.ValidateSource(src); err != nil {
		return nil, "", err
	}
	switch {
	case strings.HasPrefix(src, "data:"):
		mt, data, err := DecodeDataURL(src)
		return data, mt, err
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetch(ctx, src)
	default:
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeImageFetch, err, "read %s", src)
		}
		return data, "", nil
	}
}

func (l *Loader) decode(ctx context.Context, data []byte, mediaType, src string) (image.Image, error) {
	if isHTML(data, mediaType) {
		if l.renderer == nil {
			return nil, errors.New(errors.ErrCodeUnsupported, "%s is an HTML page and no headless renderer is configured", truncate(src))
		}
		return l.render(ctx, string(data))
	}
	return Decode(data, mediaType)
}

func (l *Loader) render(ctx context.Context, page string) (image.Image, error) {
	l.logger.Debug("rendering page in headless browser", "bytes", len(page))
	return l.renderer.Render(ctx, page)
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, string, error) {
	key := l.keyer.AssetKey(src)
	if data, ok, err := l.cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "asset")
		return data, "", nil
	}
	observability.Cache().OnCacheMiss(ctx, "asset")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidSource, err, "build request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()
	resp, err := l.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, "", errors.Wrap(errors.ErrCodeTimeout, err, "fetch %s", truncate(src))
		}
		return nil, "", errors.Wrap(errors.ErrCodeImageFetch, err, "fetch %s", truncate(src))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		code := errors.ErrCodeImageFetch
		if resp.StatusCode == http.StatusNotFound {
			code = errors.ErrCodeNotFound
		}
		return nil, "", errors.New(code, "fetch %s: status %d", truncate(src), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeImageFetch, err, "read %s", truncate(src))
	}
	if len(data) > MaxImageBytes {
		return nil, "", errors.New(errors.ErrCodeImageFetch, "%s exceeds %d bytes", truncate(src), MaxImageBytes)
	}

	if err := l.cache.Set(ctx, key, data, l.ttl); err != nil {
		l.logger.Debug("cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "asset", len(data))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func truncate(s string) string {
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
