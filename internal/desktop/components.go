package desktop

import "sort"

// Component names a window renders.
const (
	ComponentDashboard      = "Dashboard"
	ComponentStorageManager = "StorageManager"
	ComponentShareManager   = "ShareManager"
	ComponentUserManager    = "UserManager"
	ComponentSettings       = "Settings"
	ComponentControlPanel   = "ControlPanel"
	ComponentFileManager    = "FileManager"
	ComponentAppCenter      = "AppCenter"
	ComponentDockerApp      = "DockerApp"
	ComponentIframeApp      = "IframeApp"
	ComponentWebviewApp     = "WebviewApp"
	ComponentServiceApp     = "ServiceApp"
)

// components maps every accepted name to the component that renders it.
var components = map[string]string{
	ComponentDashboard:      ComponentDashboard,
	ComponentStorageManager: ComponentStorageManager,
	ComponentShareManager:   ComponentShareManager,
	ComponentUserManager:    ComponentUserManager,
	ComponentSettings:       ComponentSettings,
	ComponentControlPanel:   ComponentControlPanel,
	ComponentFileManager:    ComponentFileManager,
	ComponentAppCenter:      ComponentAppCenter,
	ComponentDockerApp:      ComponentDockerApp,
	ComponentIframeApp:      ComponentIframeApp,
	ComponentWebviewApp:     ComponentWebviewApp,
	ComponentServiceApp:     ComponentServiceApp,

	// Aliases
	"Iframe":  ComponentIframeApp,
	"Webview": ComponentWebviewApp,
	"Service": ComponentServiceApp,

	// Placeholders
	"NetdiskTools": ComponentDashboard,
	"Support":      ComponentDashboard,
	"TaskManager":  ComponentDashboard,
}

// HasComponent reports whether name is a known component or alias.
func HasComponent(name string) bool {
	_, ok := components[name]
	return ok
}

// ResolveComponent returns the component rendering name. Unknown names
// render as the dashboard.
func ResolveComponent(name string) string {
	if c, ok := components[name]; ok {
		return c
	}
	return ComponentDashboard
}

// Components lists every accepted name, sorted.
func Components() []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
