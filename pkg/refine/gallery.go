package refine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yczddgj/chartgalaxy/pkg/backend"
)

// Variant is one refined image.
type Variant struct {
	Version   int       `json:"version" bson:"version"`
	URL       string    `json:"url" bson:"url"`
	Method    string    `json:"method,omitempty" bson:"method,omitempty"`
	Timestamp string    `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
	AddedAt   time.Time `json:"added_at" bson:"added_at"`
}

// Key identifies the materials a set of variants was produced from.
type Key = backend.Materials

// Gallery stores refined variants per material key.
type Gallery interface {
	// List returns the variants for key ordered by version.
	List(ctx context.Context, key Key) ([]Variant, error)

	// Replace sets the variants for key, replacing any stored ones.
	Replace(ctx context.Context, key Key, variants []Variant) error

	// Add appends a variant for key, replacing one with the same version.
	Add(ctx context.Context, key Key, v Variant) error
}

// MemoryStore is an in-process Gallery.
type MemoryStore struct {
	mu       sync.RWMutex
	variants map[Key][]Variant
}

// NewMemoryStore returns an empty gallery.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{variants: make(map[Key][]Variant)}
}

func (m *MemoryStore) List(_ context.Context, key Key) ([]Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Variant(nil), m.variants[key]...), nil
}

func (m *MemoryStore) Replace(_ context.Context, key Key, variants []Variant) error {
	list := append([]Variant(nil), variants...)
	sortVariants(list)
	m.mu.Lock()
	m.variants[key] = list
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Add(_ context.Context, key Key, v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants[key] = merge(m.variants[key], v)
	return nil
}

var _ Gallery = (*MemoryStore)(nil)

func merge(list []Variant, v Variant) []Variant {
	out := make([]Variant, 0, len(list)+1)
	for _, old := range list {
		if old.Version != v.Version {
			out = append(out, old)
		}
	}
	out = append(out, v)
	sortVariants(out)
	return out
}

func sortVariants(list []Variant) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Version < list[j].Version })
}

// FromHistory converts backend versions to variants, resolving URLs with
// resolve (normally backend.Client.AssetURL).
func FromHistory(h *backend.MaterialHistory, resolve func(string) string, now time.Time) []Variant {
	if h == nil || !h.Found {
		return nil
	}
	out := make([]Variant, 0, len(h.Versions))
	for _, v := range h.Versions {
		u := v.URL
		if resolve != nil {
			u = resolve(u)
		}
		out = append(out, Variant{
			Version:   v.Version,
			URL:       u,
			Method:    v.Method,
			Timestamp: v.Timestamp,
			AddedAt:   now,
		})
	}
	sortVariants(out)
	return out
}
