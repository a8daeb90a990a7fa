// Package autosave debounces project changes into background saves.
//
// One timer restarts on every change while autosave is enabled. When it
// fires the coordinator saves through the persistence router unless a
// foreground action holds the operation lock. With no destination chosen
// and meaningful content present, it asks the host to pick one instead of
// writing. Autosave failures are logged and never surfaced.
package autosave
