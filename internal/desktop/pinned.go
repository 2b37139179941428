package desktop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pinas/console/internal/statefile"
)

// PinnedFileName is the pinned-icons file inside the state directory.
const PinnedFileName = "desktop-icons.json"

// DefaultPinned is used when nothing has been saved yet or the file is
// unreadable.
var DefaultPinned = []string{ControlPanelID, FileManagerID}

// Pinned manages persistence of the app ids shown as desktop icons.
type Pinned struct {
	mu           sync.Mutex
	filePath     string
	ids          []string
	listeners    map[int]func([]string)
	nextListener int
}

// NewPinned creates a store backed by <stateDir>/desktop-icons.json and
// loads it.
func NewPinned(stateDir string) *Pinned {
	p := &Pinned{
		filePath:  filepath.Join(stateDir, PinnedFileName),
		listeners: make(map[int]func([]string)),
	}
	p.ids = p.load()
	return p
}

// load reads the pinned file. A missing or corrupt file yields the defaults.
func (p *Pinned) load() []string {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return slices.Clone(DefaultPinned)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil || ids == nil {
		return slices.Clone(DefaultPinned)
	}
	return ids
}

// save writes ids to disk.
func (p *Pinned) save(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := statefile.Write(p.filePath, data); err != nil {
		return fmt.Errorf("failed to save pinned apps: %w", err)
	}
	return nil
}

// Reload re-reads the file, discarding in-memory state.
func (p *Pinned) Reload() {
	ids := p.load()
	p.publish(func() bool {
		p.ids = ids
		return true
	})
}

// Add pins id at the end. Pinning an already pinned id does nothing.
func (p *Pinned) Add(id string) error {
	var err error
	p.publish(func() bool {
		if slices.Contains(p.ids, id) {
			return false
		}
		next := append(slices.Clone(p.ids), id)
		if err = p.save(next); err != nil {
			return false
		}
		p.ids = next
		return true
	})
	return err
}

// Remove unpins id.
func (p *Pinned) Remove(id string) error {
	var err error
	p.publish(func() bool {
		next := slices.DeleteFunc(slices.Clone(p.ids), func(s string) bool { return s == id })
		if err = p.save(next); err != nil {
			return false
		}
		changed := len(next) != len(p.ids)
		p.ids = next
		return changed
	})
	return err
}

// Reset restores the default pins.
func (p *Pinned) Reset() error {
	var err error
	p.publish(func() bool {
		next := slices.Clone(DefaultPinned)
		if err = p.save(next); err != nil {
			return false
		}
		p.ids = next
		return true
	})
	return err
}

// IDs returns the pinned ids in pin order.
func (p *Pinned) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.ids)
}

// Contains reports whether id is pinned.
func (p *Pinned) Contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.ids, id)
}

// DesktopApps returns the registry's apps that are pinned, in registry order.
// Pinned ids with no matching app are skipped.
func (p *Pinned) DesktopApps(r *Registry) []App {
	var out []App
	for _, app := range r.Apps() {
		if p.Contains(app.ID) {
			out = append(out, app)
		}
	}
	return out
}

// Subscribe calls fn with the pinned ids after every change.
func (p *Pinned) Subscribe(fn func([]string)) func() {
	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Pinned) publish(fn func() bool) {
	p.mu.Lock()
	if !fn() {
		p.mu.Unlock()
		return
	}
	snap := slices.Clone(p.ids)
	listeners := make([]func([]string), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
