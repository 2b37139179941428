package windows

import "sync"

// Manager tracks open windows, their stacking order and the active window.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	windows  []Window
	activeID string
	nextZ    int
	policy   ReactivationPolicy

	listeners    map[int]func(Snapshot)
	nextListener int
}

// Option configures a Manager.
type Option func(*Manager)

// WithBaseZIndex seeds the z-index counter.
func WithBaseZIndex(z int) Option {
	return func(m *Manager) {
		m.nextZ = z
	}
}

// WithReactivation sets the policy used when the active window is closed.
func WithReactivation(p ReactivationPolicy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// NewManager creates an empty window manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		windows:   make([]Window, 0),
		nextZ:     DefaultBaseZIndex,
		policy:    ReactivateFirst,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open opens a window for d.ID, or brings the existing one to front.
// The z-index counter advances exactly once either way.
func (m *Manager) Open(d Descriptor) Window {
	var opened Window
	m.update(func() bool {
		if i := m.indexLocked(d.ID); i >= 0 {
			m.raiseLocked(i, true)
			opened = m.windows[i]
			return true
		}

		w := Window{
			ID:        d.ID,
			Title:     d.Title,
			Icon:      d.Icon,
			Gradient:  d.Gradient,
			Component: d.Component,
			X:         d.X,
			Y:         d.Y,
			Width:     d.Width,
			Height:    d.Height,
			ZIndex:    m.nextZ,
			AppConfig: d.AppConfig,
		}
		m.windows = append(m.windows, w)
		m.activeID = w.ID
		m.nextZ++
		opened = w
		return true
	})
	return opened
}

// Close removes the window. If it was active, the reactivation policy picks
// the next active window, or none when the desktop is empty.
func (m *Manager) Close(id string) {
	m.update(func() bool {
		i := m.indexLocked(id)
		if i < 0 {
			return false
		}
		m.windows = append(m.windows[:i], m.windows[i+1:]...)
		if m.activeID == id {
			m.activeID = m.successorLocked()
		}
		return true
	})
}

func (m *Manager) successorLocked() string {
	if len(m.windows) == 0 {
		return ""
	}
	if m.policy == ReactivateMostRecent {
		top := 0
		for i, w := range m.windows {
			if w.ZIndex > m.windows[top].ZIndex {
				top = i
			}
		}
		return m.windows[top].ID
	}
	return m.windows[0].ID
}

// Minimize hides the window from the desktop surface. Stacking and focus
// are left alone.
func (m *Manager) Minimize(id string) {
	m.update(func() bool {
		i := m.indexLocked(id)
		if i < 0 {
			return false
		}
		m.windows[i].Minimized = true
		return true
	})
}

// ToggleMaximize flips the maximized flag.
func (m *Manager) ToggleMaximize(id string) {
	m.update(func() bool {
		i := m.indexLocked(id)
		if i < 0 {
			return false
		}
		m.windows[i].Maximized = !m.windows[i].Maximized
		return true
	})
}

// Focus makes the window active, un-minimizes it and raises it to the top.
// Ids that are not open are ignored, so the active id always names a
// window in the collection.
func (m *Manager) Focus(id string) {
	m.BringToFront(id, true)
}

// Restore un-minimizes the window and raises it. It has the same effect
// as Focus.
func (m *Manager) Restore(id string) {
	m.BringToFront(id, true)
}

// BringToFront makes the window active and gives it the next z-index,
// clearing its minimized flag when unminimize is set. It reports whether
// the window exists.
func (m *Manager) BringToFront(id string, unminimize bool) bool {
	found := false
	m.update(func() bool {
		i := m.indexLocked(id)
		if i < 0 {
			return false
		}
		m.raiseLocked(i, unminimize)
		found = true
		return true
	})
	return found
}

func (m *Manager) raiseLocked(i int, unminimize bool) {
	if unminimize {
		m.windows[i].Minimized = false
	}
	m.windows[i].ZIndex = m.nextZ
	m.activeID = m.windows[i].ID
	m.nextZ++
}

// Move sets the window position.
func (m *Manager) Move(id string, x, y int) {
	m.update(func() bool {
		i := m.indexLocked(id)
		if i < 0 {
			return false
		}
		m.windows[i].X = x
		m.windows[i].Y = y
		return true
	})
}

// Resize sets the window size.
func (m *Manager) Resize(id string, width, height int) {
	m.update(func() bool {
		i := m.indexLocked(id)
		if i < 0 {
			return false
		}
		m.windows[i].Width = width
		m.windows[i].Height = height
		return true
	})
}

// Windows returns every window in collection order.
func (m *Manager) Windows() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked()
}

// OpenWindows returns the windows that are not minimized.
func (m *Manager) OpenWindows() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return visible(m.windows)
}

// ActiveWindowID returns the active window id, or "" when none is open.
func (m *Manager) ActiveWindowID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Window returns the window with the given id.
func (m *Manager) Window(id string) (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.windows[i], true
	}
	return Window{}, false
}

// TopWindow returns the window with the highest z-index.
func (m *Manager) TopWindow() (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.windows) == 0 {
		return Window{}, false
	}
	top := m.windows[0]
	for _, w := range m.windows[1:] {
		if w.ZIndex > top.ZIndex {
			top = w
		}
	}
	return top, true
}

// NextZIndex returns the z-index the next raise will use.
func (m *Manager) NextZIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextZ
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// update runs fn under the lock and, if it reports a change, publishes the
// new snapshot once the lock is released.
func (m *Manager) update(fn func() bool) {
	m.mu.Lock()
	if !fn() {
		m.mu.Unlock()
		return
	}
	snap := m.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Windows:        m.copyLocked(),
		ActiveWindowID: m.activeID,
		NextZIndex:     m.nextZ,
	}
}

func (m *Manager) copyLocked() []Window {
	out := make([]Window, len(m.windows))
	copy(out, m.windows)
	return out
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.windows {
		if m.windows[i].ID == id {
			return i
		}
	}
	return -1
}
