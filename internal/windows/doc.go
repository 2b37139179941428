/*
Package windows implements the console's window manager.

A Manager owns the set of open application windows on the simulated desktop:
their geometry, stacking order and focus. Every operation is keyed by window
id and runs to completion under the manager's lock, so callers observe each
call as a single atomic state change. Unknown ids are ignored rather than
reported.

Stacking uses a monotonically increasing z-index counter seeded at
DefaultBaseZIndex. Every raise takes the next counter value, so the window
with the highest ZIndex is always the one most recently brought to front.

Example usage:

	m := windows.NewManager()
	m.Open(windows.Descriptor{
		ID:        "file-manager",
		Title:     "Files",
		Component: "FileManager",
		X:         80, Y: 60, Width: 900, Height: 600,
	})
	cancel := m.Subscribe(func(s windows.Snapshot) {
		render(s.OpenWindows())
	})
	defer cancel()
	m.Minimize("file-manager")
*/
package windows
