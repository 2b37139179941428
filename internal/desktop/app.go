// Package desktop knows which apps exist, which of them are pinned to the
// desktop, and how an app turns into a window.
package desktop

import "github.com/pinas/console/internal/api"

// Default window geometry for apps that do not declare one.
const (
	DefaultWindowWidth  = 900
	DefaultWindowHeight = 600
)

// WindowSize is an app's preferred window geometry.
type WindowSize struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	MinWidth  int `json:"minWidth,omitempty"`
	MinHeight int `json:"minHeight,omitempty"`
}

// App is a launchable application.
type App struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Icon      string     `json:"icon"`
	Gradient  string     `json:"gradient"`
	Component string     `json:"component"`
	Window    WindowSize `json:"window"`
	Builtin   bool       `json:"builtin"`
}

// Builtin app ids.
const (
	ControlPanelID = "control-panel"
	FileManagerID  = "file-manager"
)

// BuiltinApps returns the apps shipped with the console.
func BuiltinApps() []App {
	return []App{
		{
			ID:        ControlPanelID,
			Name:      "Control Panel",
			Icon:      "mdi:tune-variant",
			Component: ComponentControlPanel,
			Gradient:  "from-slate-500 to-slate-600",
			Builtin:   true,
		},
		{
			ID:        FileManagerID,
			Name:      "Files",
			Icon:      "mdi:folder",
			Component: ComponentFileManager,
			Gradient:  "from-amber-400 to-amber-500",
			Builtin:   true,
		},
	}
}

func appFromRegistry(e api.RegistryEntry) App {
	return App{
		ID:        e.ID,
		Name:      e.Name,
		Icon:      e.Icon,
		Gradient:  e.Gradient,
		Component: e.Component,
		Window: WindowSize{
			Width:     e.Window.Width,
			Height:    e.Window.Height,
			MinWidth:  e.Window.MinWidth,
			MinHeight: e.Window.MinHeight,
		},
	}
}
