// Package runstate records the outcome of the last archive run per
// platform so the status command can report it.
//
// The state is written atomically as JSON under the user data directory:
//
//   - Linux: $XDG_DATA_HOME/archivist or ~/.local/share/archivist
//   - macOS: ~/Library/Application Support/archivist
//   - Windows: %APPDATA%/archivist
//
// Usage:
//
//	mgr, err := runstate.NewManager("fanbox", log)
//	state := runstate.New("fanbox")
//	// ... run ...
//	state.Finish()
//	err = mgr.Save(state)
package runstate
