// Package persistence routes project saves and loads to their destinations.
//
// The Router owns the operation lock and serializes every storage call, so
// foreground actions and autosave writes never overlap. Local saves
// overwrite the manifest of the same project name; cloud saves always create
// a new file; downloads are explicit exports and are never autosaved.
// Concrete stores live in the localstore, drive, and manifest subpackages.
package persistence
