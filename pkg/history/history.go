// Package history records snapshots of a composition for undo.
//
// [Manager] keeps a bounded list of serialized states and a cursor into it.
// Besides linear undo it has a small quick-redo stack: every save pushes the
// state it is about to supersede, and [Manager.QuickRedo] pops the most
// recent one back as a new forward entry. This is not a classic redo; it
// only reaches the last few overwritten states.
//
// [Recorder] connects a Manager to a [canvas.Surface], saving after
// structural changes once they settle for a debounce interval.
package history

import (
	"sync"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// Default limits.
const (
	DefaultMaxDepth  = 50
	DefaultQuickRedo = 3
)

// Target is the state being recorded. canvas.Surface implements it.
type Target interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
	Remove(ids ...string) int
}

// Manager is a bounded undo history. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	target   Target
	entries  [][]byte
	index    int
	quick    [][]byte
	maxDepth int
	quickCap int
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxDepth bounds the number of history entries.
func WithMaxDepth(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxDepth = n
		}
	}
}

// WithQuickRedo bounds the quick-redo stack.
func WithQuickRedo(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.quickCap = n
		}
	}
}

// New returns an empty history for target.
func New(target Target, opts ...Option) *Manager {
	m := &Manager{
		target:   target,
		index:    -1,
		maxDepth: DefaultMaxDepth,
		quickCap: DefaultQuickRedo,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Save snapshots the target and appends it after the cursor, dropping any
// entries beyond the cursor. The entry under the cursor goes onto the
// quick-redo stack.
func (m *Manager) Save() error {
	data, err := m.target.Snapshot()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "snapshot surface")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= 0 && m.index < len(m.entries) {
		m.pushQuick(m.entries[m.index])
	}
	m.appendEntry(data)
	return nil
}

// SaveInitial resets the history to a single entry holding the current
// state and clears the quick-redo stack.
func (m *Manager) SaveInitial() error {
	data, err := m.target.Snapshot()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "snapshot surface")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = [][]byte{data}
	m.index = 0
	m.quick = nil
	return nil
}

// Undo moves the cursor back one entry and restores it. It reports false
// when there is nothing to undo.
func (m *Manager) Undo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index <= 0 {
		return false, nil
	}
	if err := m.target.Restore(m.entries[m.index-1]); err != nil {
		return false, errors.Wrap(errors.ErrCodeInternal, err, "restore history entry")
	}
	m.index--
	return true, nil
}

// QuickRedo restores the most recently superseded state and appends it as
// a new entry. It reports false when the quick-redo stack is empty.
func (m *Manager) QuickRedo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.quick)
	if n == 0 {
		return false, nil
	}
	data := m.quick[n-1]
	if err := m.target.Restore(data); err != nil {
		return false, errors.Wrap(errors.ErrCodeInternal, err, "restore quick-redo entry")
	}
	m.quick = m.quick[:n-1]
	m.appendEntry(data)
	return true, nil
}

// Delete records the current state, pushes it onto the quick-redo stack and
// then removes the given elements. It returns how many were removed.
func (m *Manager) Delete(ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	data, err := m.target.Snapshot()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "snapshot surface")
	}
	m.mu.Lock()
	m.pushQuick(data)
	m.appendEntry(data)
	m.mu.Unlock()
	return m.target.Remove(ids...), nil
}

// Reset empties the history and the quick-redo stack.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.index = -1
	m.quick = nil
}

// Len returns the number of entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Index returns the cursor, -1 when empty.
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// QuickLen returns the depth of the quick-redo stack.
func (m *Manager) QuickLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.quick)
}

// Retained returns every snapshot the history can still restore: the
// entries and the quick-redo stack.
func (m *Manager) Retained() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, 0, len(m.entries)+len(m.quick))
	out = append(out, m.entries...)
	return append(out, m.quick...)
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool {
	return m.Index() > 0
}

func (m *Manager) appendEntry(data []byte) {
	m.entries = append(m.entries[:m.index+1], data)
	if len(m.entries) > m.maxDepth {
		m.entries = m.entries[len(m.entries)-m.maxDepth:]
	}
	m.index = len(m.entries) - 1
}

func (m *Manager) pushQuick(data []byte) {
	if m.quickCap == 0 {
		return
	}
	m.quick = append(m.quick, data)
	if len(m.quick) > m.quickCap {
		m.quick = m.quick[len(m.quick)-m.quickCap:]
	}
}
