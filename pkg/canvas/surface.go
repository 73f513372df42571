package canvas

import (
	"image"
	"image/color"
	"sync"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// Default surface settings.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 900
	DefaultBackground = "#ffffff"
)

// EventKind classifies surface changes.
type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
	EventModified
	EventCleared
	// EventRestored is published after a snapshot is loaded. History
	// ignores it so replaying a state does not record a new one.
	EventRestored
)

// Event describes one surface change.
type Event struct {
	Kind    EventKind
	Element *Element
	Index   int
}

// Structural reports whether the event changes the composition itself.
func (e Event) Structural() bool {
	switch e.Kind {
	case EventAdded, EventRemoved, EventModified:
		return true
	}
	return false
}

// Surface is an ordered set of elements drawn over a background.
// It is safe for concurrent use.
type Surface struct {
	mu         sync.RWMutex
	size       geom.Size
	background string
	elements   []*Element
	images     map[string]image.Image

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// New returns an empty surface. An invalid background falls back to white.
func New(width, height int, background string) *Surface {
	if _, err := colorful.Hex(background); err != nil {
		background = DefaultBackground
	}
	return &Surface{
		size:       geom.Size{W: float64(width), H: float64(height)},
		background: background,
		images:     make(map[string]image.Image),
		listeners:  make(map[int]func(Event)),
	}
}

// Size returns the surface dimensions.
func (s *Surface) Size() geom.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Background returns the background color as a hex string.
func (s *Surface) Background() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.background
}

// SetBackground changes the background color.
func (s *Surface) SetBackground(hex string) error {
	if _, err := colorful.Hex(hex); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid background %q", hex)
	}
	s.mu.Lock()
	s.background = hex
	s.mu.Unlock()
	s.emit(Event{Kind: EventModified, Index: -1})
	return nil
}

func (s *Surface) backgroundColor() color.Color {
	c, err := colorful.Hex(s.background)
	if err != nil {
		return color.White
	}
	return c
}

// OnChange registers fn for every change and returns a function removing it.
func (s *Surface) OnChange(fn func(Event)) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Surface) emit(events ...Event) {
	s.lmu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// Len returns the number of elements.
func (s *Surface) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Elements returns copies of the elements in z-order.
func (s *Surface) Elements() []*Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Element, len(s.elements))
	for i, e := range s.elements {
		out[i] = e.clone()
	}
	return out
}

// At returns a copy of the element at index i.
func (s *Surface) At(i int) (*Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.elements) {
		return nil, false
	}
	return s.elements[i].clone(), true
}

// IndexOf returns the index of the element with the given ID, or -1.
func (s *Surface) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

func (s *Surface) indexOf(id string) int {
	for i, e := range s.elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Add appends e and returns its index.
func (s *Surface) Add(e *Element) int {
	return s.Insert(-1, e)
}

// Insert places e at index i, shifting later elements up. An out-of-range
// index appends.
func (s *Surface) Insert(i int, e *Element) int {
	s.mu.Lock()
	if i < 0 || i > len(s.elements) {
		i = len(s.elements)
	}
	s.elements = append(s.elements, nil)
	copy(s.elements[i+1:], s.elements[i:])
	s.elements[i] = e
	s.remember(e)
	s.mu.Unlock()
	s.emit(Event{Kind: EventAdded, Element: e.clone(), Index: i})
	return i
}

// RemoveAt removes the element at index i.
func (s *Surface) RemoveAt(i int) (*Element, bool) {
	s.mu.Lock()
	if i < 0 || i >= len(s.elements) {
		s.mu.Unlock()
		return nil, false
	}
	e := s.elements[i]
	s.elements = append(s.elements[:i], s.elements[i+1:]...)
	s.mu.Unlock()
	s.emit(Event{Kind: EventRemoved, Element: e.clone(), Index: i})
	return e, true
}

// Remove removes the elements with the given IDs and returns how many were
// found.
func (s *Surface) Remove(ids ...string) int {
	var events []Event
	s.mu.Lock()
	for _, id := range ids {
		i := s.indexOf(id)
		if i < 0 {
			continue
		}
		e := s.elements[i]
		s.elements = append(s.elements[:i], s.elements[i+1:]...)
		events = append(events, Event{Kind: EventRemoved, Element: e.clone(), Index: i})
	}
	s.mu.Unlock()
	s.emit(events...)
	return len(events)
}

// Modify applies fn to the element at index i under the surface lock.
func (s *Surface) Modify(i int, fn func(*Element)) bool {
	s.mu.Lock()
	if i < 0 || i >= len(s.elements) {
		s.mu.Unlock()
		return false
	}
	e := s.elements[i]
	fn(e)
	s.remember(e)
	snap := e.clone()
	s.mu.Unlock()
	s.emit(Event{Kind: EventModified, Element: snap, Index: i})
	return true
}

// SetImage swaps the content of the element at index i, keeping its
// transform.
func (s *Surface) SetImage(i int, source string, img image.Image) bool {
	return s.Modify(i, func(e *Element) { e.setImage(source, img) })
}

// Clear removes every element. The image memo is kept.
func (s *Surface) Clear() {
	s.mu.Lock()
	s.elements = nil
	s.mu.Unlock()
	s.emit(Event{Kind: EventCleared, Index: -1})
}

// Provide registers a decoded image for source so restored elements that
// reference it can be drawn.
func (s *Surface) Provide(source string, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[source] = img
	for _, e := range s.elements {
		if e.Source == source && e.img == nil {
			e.setImage(source, img)
		}
	}
}

// Ref names the content of an element.
type Ref struct {
	Kind   Kind
	Source string
}

// Missing returns the content of elements whose image is not loaded, once
// per kind and source.
func (s *Surface) Missing() []Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Ref
	seen := make(map[Ref]bool)
	for _, e := range s.elements {
		r := Ref{Kind: e.Kind, Source: e.Source}
		if e.img == nil && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// PruneImages drops memoized images that no current element shows and keep
// does not report as still needed. It returns how many were dropped.
func (s *Surface) PruneImages(keep func(source string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := make(map[string]bool, len(s.elements))
	for _, e := range s.elements {
		used[e.Source] = true
	}
	n := 0
	for src := range s.images {
		if used[src] || (keep != nil && keep(src)) {
			continue
		}
		delete(s.images, src)
		n++
	}
	return n
}

// Memoized returns the number of images held for restores.
func (s *Surface) Memoized() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

func (s *Surface) remember(e *Element) {
	if e.img != nil && e.Source != "" {
		s.images[e.Source] = e.img
	}
}
