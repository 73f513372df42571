package canvas

import (
	"encoding/json"
	"fmt"

	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// snapshotVersion is bumped when the serialized form changes incompatibly.
const snapshotVersion = 1

type snapshot struct {
	Version    int               `json:"version"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Background string            `json:"background"`
	Elements   []elementSnapshot `json:"objects"`
}

type elementSnapshot struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Source  string    `json:"src"`
	Visible bool      `json:"visible"`
	Natural geom.Size `json:"natural"`
	Transform
}

// Snapshot serializes every element and the background.
func (s *Surface) Snapshot() ([]byte, error) {
	s.mu.RLock()
	snap := snapshot{
		Version:    snapshotVersion,
		Width:      s.size.W,
		Height:     s.size.H,
		Background: s.background,
		Elements:   make([]elementSnapshot, len(s.elements)),
	}
	for i, e := range s.elements {
		snap.Elements[i] = elementSnapshot{
			ID:        e.ID,
			Kind:      e.Kind,
			Source:    e.Source,
			Visible:   e.Visible,
			Natural:   e.natural,
			Transform: e.Transform,
		}
	}
	s.mu.RUnlock()
	return json.Marshal(snap)
}

// Restore replaces the surface contents with a snapshot. Images are taken
// from the memo; elements whose source was never seen are restored without
// content and reported by [Surface.Missing].
func (s *Surface) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	s.mu.Lock()
	if snap.Width > 0 && snap.Height > 0 {
		s.size = geom.Size{W: snap.Width, H: snap.Height}
	}
	if snap.Background != "" {
		s.background = snap.Background
	}
	s.elements = make([]*Element, len(snap.Elements))
	for i, es := range snap.Elements {
		e := &Element{
			ID:        es.ID,
			Kind:      es.Kind,
			Source:    es.Source,
			Visible:   es.Visible,
			Transform: es.Transform,
			natural:   es.Natural,
		}
		if img, ok := s.images[es.Source]; ok {
			e.setImage(es.Source, img)
		}
		s.elements[i] = e
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventRestored, Index: -1})
	return nil
}

// SnapshotSources returns the image sources a snapshot references.
func SnapshotSources(data []byte) ([]string, error) {
	var snap struct {
		Elements []struct {
			Source string `json:"src"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	out := make([]string, 0, len(snap.Elements))
	for _, e := range snap.Elements {
		out = append(out, e.Source)
	}
	return out, nil
}
