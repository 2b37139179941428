package ui

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme names.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeAuto  = "auto"
)

// Package-level hooks for testing.
var (
	goos       = runtime.GOOS
	runCommand = func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).Output()
	}
)

// DetectSystemTheme returns "dark" or "light" based on OS settings.
// Falls back to "dark" if detection fails.
func DetectSystemTheme() string {
	switch goos {
	case "darwin":
		return detectMacOSTheme()
	case "linux":
		return detectLinuxTheme()
	default:
		return ThemeDark
	}
}

// detectMacOSTheme checks AppleInterfaceStyle; the key is absent in light mode.
func detectMacOSTheme() string {
	output, err := runCommand("defaults", "read", "-g", "AppleInterfaceStyle")
	if err != nil {
		return ThemeLight
	}
	if strings.TrimSpace(string(output)) == "Dark" {
		return ThemeDark
	}
	return ThemeLight
}

// detectLinuxTheme checks the GNOME color scheme, then the GTK theme name.
func detectLinuxTheme() string {
	output, err := runCommand("gsettings", "get", "org.gnome.desktop.interface", "color-scheme")
	if err == nil {
		lower := strings.ToLower(string(output))
		if strings.Contains(lower, "dark") {
			return ThemeDark
		}
		if strings.Contains(lower, "light") {
			return ThemeLight
		}
	}

	output, err = runCommand("gsettings", "get", "org.gnome.desktop.interface", "gtk-theme")
	if err == nil && strings.Contains(strings.ToLower(string(output)), "dark") {
		return ThemeDark
	}
	return ThemeDark
}

// ResolveTheme turns a preference into "dark" or "light".
func ResolveTheme(pref string) string {
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case ThemeLight:
		return ThemeLight
	case ThemeAuto:
		return DetectSystemTheme()
	default:
		return ThemeDark
	}
}

// Theme holds the desktop's styles.
type Theme struct {
	Name string

	Title        lipgloss.Style
	Icon         lipgloss.Style
	IconSelected lipgloss.Style

	Window            lipgloss.Style
	WindowActive      lipgloss.Style
	WindowTitle       lipgloss.Style
	WindowTitleActive lipgloss.Style

	Taskbar        lipgloss.Style
	TaskItem       lipgloss.Style
	TaskItemActive lipgloss.Style
	TaskItemMin    lipgloss.Style

	Muted  lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
}

type palette struct {
	fg, muted, accent, border, surface, errFg lipgloss.Color
}

var palettes = map[string]palette{
	ThemeDark: {
		fg:      lipgloss.Color("#E6E6E6"),
		muted:   lipgloss.Color("#6C7086"),
		accent:  lipgloss.Color("#7AA2F7"),
		border:  lipgloss.Color("#3B4261"),
		surface: lipgloss.Color("#1F2335"),
		errFg:   lipgloss.Color("#F7768E"),
	},
	ThemeLight: {
		fg:      lipgloss.Color("#1E1E2E"),
		muted:   lipgloss.Color("#8C8FA1"),
		accent:  lipgloss.Color("#1E66F5"),
		border:  lipgloss.Color("#BCC0CC"),
		surface: lipgloss.Color("#E6E9EF"),
		errFg:   lipgloss.Color("#D20F39"),
	},
}

// NewTheme builds the styles for a preference ("dark", "light" or "auto").
func NewTheme(pref string) Theme {
	name := ResolveTheme(pref)
	p := palettes[name]

	return Theme{
		Name: name,

		Title: lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		Icon: lipgloss.NewStyle().
			Foreground(p.fg).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
		IconSelected: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.accent).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.accent).
			Padding(0, 1),

		Window: lipgloss.NewStyle().
			Foreground(p.fg).
			Border(lipgloss.NormalBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
		WindowActive: lipgloss.NewStyle().
			Foreground(p.fg).
			Border(lipgloss.ThickBorder()).
			BorderForeground(p.accent).
			Padding(0, 1),
		WindowTitle:       lipgloss.NewStyle().Foreground(p.muted),
		WindowTitleActive: lipgloss.NewStyle().Bold(true).Foreground(p.accent),

		Taskbar:        lipgloss.NewStyle().Background(p.surface).Foreground(p.fg).Padding(0, 1),
		TaskItem:       lipgloss.NewStyle().Foreground(p.fg),
		TaskItemActive: lipgloss.NewStyle().Bold(true).Underline(true).Foreground(p.accent),
		TaskItemMin:    lipgloss.NewStyle().Faint(true).Foreground(p.muted),

		Muted:  lipgloss.NewStyle().Foreground(p.muted),
		Status: lipgloss.NewStyle().Foreground(p.fg),
		Error:  lipgloss.NewStyle().Foreground(p.errFg),
	}
}
