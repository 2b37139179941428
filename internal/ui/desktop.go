// Package ui renders the console desktop in the terminal.
package ui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pinas/console/internal/auth"
	"github.com/pinas/console/internal/desktop"
	"github.com/pinas/console/internal/i18n"
	"github.com/pinas/console/internal/shell"
	"github.com/pinas/console/internal/telemetry"
	"github.com/pinas/console/internal/windows"
)

// moveStep is how far one arrow key press moves the active window.
const moveStep = 10

// Deps are the stores the desktop reads and drives.
type Deps struct {
	Windows       *windows.Manager
	Registry      *desktop.Registry
	Pinned        *desktop.Pinned
	Stats         *telemetry.StatsStore
	Notifications *telemetry.Notifications
	I18n          *i18n.Store
	Auth          *auth.Store
	// Open launches an app by id.
	Open  func(id string) (windows.Window, error)
	Theme string
}

// FromConsole collects Deps from a running console.
func FromConsole(c *shell.Console) Deps {
	return Deps{
		Windows:       c.Windows(),
		Registry:      c.Registry(),
		Pinned:        c.Pinned(),
		Stats:         c.Stats(),
		Notifications: c.Notifications(),
		I18n:          c.I18n(),
		Auth:          c.Auth(),
		Open:          c.OpenApp,
		Theme:         c.Config().Theme,
	}
}

// refreshMsg tells the model a store changed.
type refreshMsg struct{}

// Desktop is the bubbletea model for the desktop.
type Desktop struct {
	deps  Deps
	theme Theme

	width  int
	height int

	selected  int
	minimized []string // ids in the order they were minimized
	status    string
	err       string

	updates     chan struct{}
	unsubscribe []func()
}

// NewDesktop creates the model and subscribes to store changes.
func NewDesktop(deps Deps) *Desktop {
	d := &Desktop{
		deps:    deps,
		theme:   NewTheme(deps.Theme),
		updates: make(chan struct{}, 1),
	}

	notify := func() {
		select {
		case d.updates <- struct{}{}:
		default:
		}
	}
	d.unsubscribe = append(d.unsubscribe,
		deps.Windows.Subscribe(func(windows.Snapshot) { notify() }),
		deps.Pinned.Subscribe(func([]string) { notify() }),
	)
	if deps.Stats != nil {
		d.unsubscribe = append(d.unsubscribe, deps.Stats.Subscribe(func(telemetry.Stats) { notify() }))
	}
	if deps.Notifications != nil {
		d.unsubscribe = append(d.unsubscribe, deps.Notifications.Subscribe(func([]telemetry.Notification) { notify() }))
	}
	if deps.I18n != nil {
		d.unsubscribe = append(d.unsubscribe, deps.I18n.Subscribe(func(i18n.Locale) { notify() }))
	}
	return d
}

// Close drops the store subscriptions.
func (d *Desktop) Close() {
	for _, fn := range d.unsubscribe {
		fn()
	}
	d.unsubscribe = nil
}

func (d *Desktop) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-d.updates
		return refreshMsg{}
	}
}

// Init starts listening for store changes.
func (d *Desktop) Init() tea.Cmd {
	return d.waitForUpdate()
}

// Update handles keys, resizes and store changes.
func (d *Desktop) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		return d, nil
	case refreshMsg:
		d.clampSelection()
		return d, d.waitForUpdate()
	case tea.KeyMsg:
		return d.handleKey(msg)
	}
	return d, nil
}

func (d *Desktop) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d.err = ""
	wm := d.deps.Windows
	target := d.target()

	switch msg.String() {
	case "q", "ctrl+c":
		d.Close()
		return d, tea.Quit
	case "enter":
		d.openSelected()
	case "h", "shift+tab":
		d.selected--
		d.clampSelection()
	case "l":
		d.selected++
		d.clampSelection()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		// Digits past the last icon do nothing.
		if i := int(msg.Runes[0] - '1'); i < len(d.icons()) {
			d.selected = i
			d.openSelected()
		}
	case "tab":
		d.focusNext()
	case "m":
		if target != "" {
			wm.Minimize(target)
			d.minimized = append(d.minimized, target)
		}
	case "x":
		if target != "" {
			wm.ToggleMaximize(target)
		}
	case "w":
		if target != "" {
			wm.Close(target)
		}
	case "r":
		d.restoreLast()
	case "up", "down", "left", "right":
		d.move(target, msg.String())
	}
	return d, nil
}

func (d *Desktop) icons() []desktop.App {
	return d.deps.Pinned.DesktopApps(d.deps.Registry)
}

func (d *Desktop) clampSelection() {
	n := len(d.icons())
	if d.selected >= n {
		d.selected = n - 1
	}
	if d.selected < 0 {
		d.selected = 0
	}
}

func (d *Desktop) openSelected() {
	icons := d.icons()
	if len(icons) == 0 || d.deps.Open == nil {
		return
	}
	app := icons[d.selected]
	if _, err := d.deps.Open(app.ID); err != nil {
		d.err = err.Error()
		return
	}
	d.status = app.Name
}

// focusNext focuses the window after the active one in collection order,
// wrapping around.
func (d *Desktop) focusNext() {
	ws := d.deps.Windows.Windows()
	if len(ws) == 0 {
		return
	}
	active := d.deps.Windows.ActiveWindowID()
	next := 0
	for i, w := range ws {
		if w.ID == active {
			next = (i + 1) % len(ws)
			break
		}
	}
	d.deps.Windows.Focus(ws[next].ID)
}

// restoreLast restores the most recently minimized window that is still
// minimized, falling back to the topmost minimized window.
func (d *Desktop) restoreLast() {
	wm := d.deps.Windows
	for len(d.minimized) > 0 {
		id := d.minimized[len(d.minimized)-1]
		d.minimized = d.minimized[:len(d.minimized)-1]
		if w, ok := wm.Window(id); ok && w.Minimized {
			wm.Restore(id)
			return
		}
	}

	var top *windows.Window
	ws := wm.Windows()
	for i := range ws {
		if ws[i].Minimized && (top == nil || ws[i].ZIndex > top.ZIndex) {
			top = &ws[i]
		}
	}
	if top != nil {
		wm.Restore(top.ID)
	}
}

// target is the window keyboard commands act on: the active window while it
// is visible, otherwise the topmost visible one. Minimizing leaves the
// active id in place.
func (d *Desktop) target() string {
	snap := d.deps.Windows.Snapshot()
	if w, ok := snap.Active(); ok && !w.Minimized {
		return w.ID
	}
	id, z := "", -1
	for _, w := range snap.OpenWindows() {
		if w.ZIndex > z {
			id, z = w.ID, w.ZIndex
		}
	}
	return id
}

func (d *Desktop) move(id, dir string) {
	wm := d.deps.Windows
	w, ok := wm.Window(id)
	if !ok || w.Maximized {
		return
	}
	x, y := w.X, w.Y
	switch dir {
	case "up":
		y -= moveStep
	case "down":
		y += moveStep
	case "left":
		x -= moveStep
	case "right":
		x += moveStep
	}
	wm.Move(w.ID, max(0, x), max(0, y))
}

func (d *Desktop) t(path string) string {
	if d.deps.I18n == nil {
		return path
	}
	return d.deps.I18n.T(path)
}

func (d *Desktop) tf(path string, args map[string]any) string {
	if d.deps.I18n == nil {
		return path
	}
	return d.deps.I18n.Tf(path, args)
}

// View renders icons, windows in z-order and the taskbar.
func (d *Desktop) View() string {
	sections := []string{
		d.renderIcons(),
		d.renderWindows(),
		d.renderTaskbar(),
		d.theme.Muted.Render(d.t("console.help")),
	}
	switch {
	case d.err != "":
		sections = append(sections, d.theme.Error.Render(d.err))
	case d.status != "":
		sections = append(sections, d.theme.Status.Render(d.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (d *Desktop) renderIcons() string {
	icons := d.icons()
	header := d.theme.Title.Render(d.t("console.desktop"))
	if len(icons) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, d.theme.Muted.Render(d.t("common.noApplicationsFound")))
	}

	cells := make([]string, 0, len(icons))
	for i, app := range icons {
		label := fmt.Sprintf("%d %s", i+1, app.Name)
		style := d.theme.Icon
		if i == d.selected {
			style = d.theme.IconSelected
		}
		cells = append(cells, style.Render(label))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

// renderWindows draws visible windows bottom to top so the active one,
// which holds the highest z-index, ends up last.
func (d *Desktop) renderWindows() string {
	snap := d.deps.Windows.Snapshot()
	visible := snap.OpenWindows()
	if len(visible) == 0 {
		return d.theme.Muted.Render(d.t("console.noWindows"))
	}
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].ZIndex < visible[j].ZIndex })

	boxes := make([]string, 0, len(visible))
	for _, w := range visible {
		boxes = append(boxes, d.renderWindow(w, w.ID == snap.ActiveWindowID))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...)
}

func (d *Desktop) renderWindow(w windows.Window, active bool) string {
	box, title := d.theme.Window, d.theme.WindowTitle
	if active {
		box, title = d.theme.WindowActive, d.theme.WindowTitleActive
	}

	controls := d.theme.Muted.Render("[_] [□] [x]")
	head := title.Render(w.Title) + "  " + controls

	var geometry string
	if w.Maximized {
		geometry = d.t("window.maximize")
	} else {
		geometry = fmt.Sprintf("%d,%d  %dx%d", w.X, w.Y, w.Width, w.Height)
	}
	body := fmt.Sprintf("%s  z=%d  %s", w.Component, w.ZIndex, geometry)

	width := 0
	if d.width > 4 {
		width = d.width - 4
	}
	return box.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, head, body))
}

func (d *Desktop) renderTaskbar() string {
	snap := d.deps.Windows.Snapshot()

	items := make([]string, 0, len(snap.Windows))
	for _, w := range snap.Windows {
		style := d.theme.TaskItem
		switch {
		case w.Minimized:
			style = d.theme.TaskItemMin
		case w.ID == snap.ActiveWindowID:
			style = d.theme.TaskItemActive
		}
		items = append(items, style.Render(w.Title))
	}

	parts := []string{d.theme.Title.Render(d.t("console.taskbar"))}
	if len(items) > 0 {
		parts = append(parts, strings.Join(items, " │ "))
	}

	if d.deps.Stats != nil {
		s := d.deps.Stats.Current()
		parts = append(parts, fmt.Sprintf("%s %.0f%%  %s %s",
			d.t("widgets.cpu"), s.CPUUsage, d.t("widgets.memory"), s.FormattedMemory()))
	}
	if d.deps.Notifications != nil {
		if n := len(d.deps.Notifications.List()); n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", d.t("notifications.title"), n))
		}
	}
	if d.deps.Auth != nil {
		if sess := d.deps.Auth.Current(); sess.Authenticated && sess.User != nil {
			parts = append(parts, d.tf("console.signedInAs", map[string]any{"username": sess.User.Username}))
		} else {
			parts = append(parts, d.t("console.signedOut"))
		}
	}

	return d.theme.Taskbar.Render(strings.Join(parts, "  ·  "))
}

// Run starts the desktop for c and blocks until the user quits.
func Run(c *shell.Console) error {
	d := NewDesktop(FromConsole(c))
	defer d.Close()
	_, err := tea.NewProgram(d, tea.WithAltScreen()).Run()
	return err
}
