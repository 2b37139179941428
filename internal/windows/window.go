package windows

// DefaultBaseZIndex is the first z-index handed out. It sits above the
// desktop chrome layers (icons, taskbar) drawn by the renderer.
const DefaultBaseZIndex = 100

// Window is one open application instance on the desktop.
type Window struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	Gradient  string `json:"gradient,omitempty"`
	Component string `json:"component"`

	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	Minimized bool `json:"minimized"`
	Maximized bool `json:"maximized"`
	ZIndex    int  `json:"zIndex"`

	// AppConfig is handed to the mounted component untouched.
	AppConfig map[string]any `json:"appConfig,omitempty"`
}

// Descriptor carries everything needed to open a window.
type Descriptor struct {
	ID        string
	Title     string
	Icon      string
	Gradient  string
	Component string
	X         int
	Y         int
	Width     int
	Height    int
	AppConfig map[string]any
}

// Snapshot is an immutable view of the manager state, published to
// subscribers after every change.
type Snapshot struct {
	Windows        []Window
	ActiveWindowID string
	NextZIndex     int
}

// OpenWindows returns the windows that are not minimized, in collection order.
func (s Snapshot) OpenWindows() []Window {
	return visible(s.Windows)
}

// Active returns the active window, if any.
func (s Snapshot) Active() (Window, bool) {
	if s.ActiveWindowID == "" {
		return Window{}, false
	}
	for _, w := range s.Windows {
		if w.ID == s.ActiveWindowID {
			return w, true
		}
	}
	return Window{}, false
}

func visible(ws []Window) []Window {
	out := make([]Window, 0, len(ws))
	for _, w := range ws {
		if !w.Minimized {
			out = append(out, w)
		}
	}
	return out
}

// ReactivationPolicy decides which window becomes active after the active
// window is closed.
type ReactivationPolicy int

const (
	// ReactivateFirst activates the first remaining window in collection order.
	ReactivateFirst ReactivationPolicy = iota
	// ReactivateMostRecent activates the remaining window with the highest z-index.
	ReactivateMostRecent
)

// String returns a string representation of the policy.
func (p ReactivationPolicy) String() string {
	switch p {
	case ReactivateFirst:
		return "first"
	case ReactivateMostRecent:
		return "most_recent"
	default:
		return "unknown"
	}
}

// ParseReactivationPolicy maps a config value to a policy, defaulting to
// ReactivateFirst.
func ParseReactivationPolicy(s string) ReactivationPolicy {
	if s == "most_recent" {
		return ReactivateMostRecent
	}
	return ReactivateFirst
}
