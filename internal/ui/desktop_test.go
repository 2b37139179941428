package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pinas/console/internal/desktop"
	"github.com/pinas/console/internal/i18n"
	"github.com/pinas/console/internal/telemetry"
	"github.com/pinas/console/internal/windows"
)

func newTestDesktop(t *testing.T) *Desktop {
	t.Helper()

	registry := desktop.NewRegistry(nil, nil)
	wm := windows.NewManager()
	tr, err := i18n.New(i18n.English)
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}

	d := NewDesktop(Deps{
		Windows:       wm,
		Registry:      registry,
		Pinned:        desktop.NewPinned(t.TempDir()),
		Stats:         telemetry.NewStatsStore(),
		Notifications: telemetry.NewNotifications(),
		I18n:          tr,
		Open: func(id string) (windows.Window, error) {
			desc, err := registry.Descriptor(id, len(wm.Windows()))
			if err != nil {
				return windows.Window{}, err
			}
			return wm.Open(desc), nil
		},
		Theme: ThemeDark,
	})
	t.Cleanup(d.Close)
	return d
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNewDesktop(t *testing.T) {
	d := newTestDesktop(t)
	if d.theme.Name != ThemeDark {
		t.Errorf("theme = %q, want %q", d.theme.Name, ThemeDark)
	}
	if d.Init() == nil {
		t.Error("Init should return a command")
	}
	if len(d.unsubscribe) != 5 {
		t.Errorf("subscriptions = %d, want 5", len(d.unsubscribe))
	}
}

func TestDesktopResize(t *testing.T) {
	d := newTestDesktop(t)
	d.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if d.width != 120 || d.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", d.width, d.height)
	}
}

func TestDesktopViewEmpty(t *testing.T) {
	d := newTestDesktop(t)
	d.width = 100

	view := d.View()
	for _, want := range []string{"Desktop", "Control Panel", "Files", "No open windows"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDesktopOpenWithDigit(t *testing.T) {
	d := newTestDesktop(t)

	// Two icons are pinned, so 9 names nothing.
	d.Update(key('9'))
	if n := len(d.deps.Windows.Windows()); n != 0 {
		t.Fatalf("windows = %d after pressing 9, want 0", n)
	}
	if d.selected != 0 {
		t.Errorf("selected = %d after pressing 9, want 0", d.selected)
	}

	d.Update(key('2'))
	if got := d.deps.Windows.ActiveWindowID(); got != desktop.FileManagerID {
		t.Fatalf("active = %q, want %q", got, desktop.FileManagerID)
	}
	if d.selected != 1 {
		t.Errorf("selected = %d, want 1", d.selected)
	}

	d.Update(key('3'))
	if n := len(d.deps.Windows.Windows()); n != 1 {
		t.Errorf("windows = %d, want 1", n)
	}
	if d.selected != 1 {
		t.Errorf("selected = %d after pressing 3, want 1", d.selected)
	}
}

func TestDesktopSelectAndEnter(t *testing.T) {
	d := newTestDesktop(t)

	d.Update(key('h'))
	if d.selected != 0 {
		t.Errorf("selected = %d, want 0", d.selected)
	}
	d.Update(key('l'))
	d.Update(key('l'))
	if d.selected != 1 {
		t.Errorf("selected = %d, want 1", d.selected)
	}

	d.Update(tea.KeyMsg{Type: tea.KeyEnter})
	w, ok := d.deps.Windows.Window(desktop.FileManagerID)
	if !ok {
		t.Fatal("file manager window not opened")
	}
	if !strings.Contains(d.View(), w.Title) {
		t.Error("view should show the window title")
	}
}

func TestDesktopWindowKeys(t *testing.T) {
	d := newTestDesktop(t)
	wm := d.deps.Windows

	d.Update(key('1'))
	d.Update(key('2'))
	if got := wm.ActiveWindowID(); got != desktop.FileManagerID {
		t.Fatalf("active = %q", got)
	}

	d.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := wm.ActiveWindowID(); got != desktop.ControlPanelID {
		t.Errorf("tab: active = %q, want %q", got, desktop.ControlPanelID)
	}

	d.Update(key('x'))
	if w, _ := wm.Window(desktop.ControlPanelID); !w.Maximized {
		t.Error("x should maximize the active window")
	}
	d.Update(key('x'))

	before, _ := wm.Window(desktop.ControlPanelID)
	d.Update(tea.KeyMsg{Type: tea.KeyRight})
	d.Update(tea.KeyMsg{Type: tea.KeyDown})
	after, _ := wm.Window(desktop.ControlPanelID)
	if after.X != before.X+moveStep || after.Y != before.Y+moveStep {
		t.Errorf("moved to %d,%d from %d,%d", after.X, after.Y, before.X, before.Y)
	}

	d.Update(key('w'))
	if _, ok := wm.Window(desktop.ControlPanelID); ok {
		t.Error("w should close the active window")
	}
	if got := wm.ActiveWindowID(); got != desktop.FileManagerID {
		t.Errorf("after close: active = %q", got)
	}
}

func TestDesktopMinimizeRestoreOrder(t *testing.T) {
	d := newTestDesktop(t)
	wm := d.deps.Windows

	d.Update(key('1'))
	d.Update(key('2'))

	d.Update(key('m')) // file manager
	d.Update(key('m')) // control panel
	if len(wm.OpenWindows()) != 0 {
		t.Fatalf("open windows = %d, want 0", len(wm.OpenWindows()))
	}

	d.Update(key('r'))
	if got := wm.ActiveWindowID(); got != desktop.ControlPanelID {
		t.Errorf("first restore = %q, want %q", got, desktop.ControlPanelID)
	}
	d.Update(key('r'))
	if got := wm.ActiveWindowID(); got != desktop.FileManagerID {
		t.Errorf("second restore = %q, want %q", got, desktop.FileManagerID)
	}
	if len(wm.OpenWindows()) != 2 {
		t.Errorf("open windows = %d, want 2", len(wm.OpenWindows()))
	}
}

func TestDesktopRestoreFallsBackToTopmost(t *testing.T) {
	d := newTestDesktop(t)
	wm := d.deps.Windows

	d.Update(key('1'))
	d.Update(key('2'))
	// Minimized outside the desktop's key handling.
	wm.Minimize(desktop.ControlPanelID)
	wm.Minimize(desktop.FileManagerID)

	d.Update(key('r'))
	if got := wm.ActiveWindowID(); got != desktop.FileManagerID {
		t.Errorf("restore = %q, want %q", got, desktop.FileManagerID)
	}
}

func TestDesktopTaskbarStats(t *testing.T) {
	d := newTestDesktop(t)
	d.deps.Stats.Set(telemetry.Stats{CPUUsage: 42, MemoryUsed: 1536, MemoryTotal: 1 << 30})
	d.deps.Notifications.Add(telemetry.Notification{Message: "disk almost full"})

	view := d.View()
	for _, want := range []string{"CPU 42%", "1.5 KB / 1 GB", "Notifications: 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("taskbar missing %q", want)
		}
	}
}

func TestDesktopQuit(t *testing.T) {
	d := newTestDesktop(t)
	_, cmd := d.Update(key('q'))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if d.unsubscribe != nil {
		t.Error("quitting should drop subscriptions")
	}
}

func TestDesktopRefreshClampsSelection(t *testing.T) {
	d := newTestDesktop(t)
	d.selected = 1

	if err := d.deps.Pinned.Remove(desktop.FileManagerID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, cmd := d.Update(refreshMsg{})
	if cmd == nil {
		t.Error("refresh should wait for the next update")
	}
	if d.selected != 0 {
		t.Errorf("selected = %d, want 0", d.selected)
	}
}
