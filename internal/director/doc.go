// Package director implements the storyboard pipeline orchestrator.
//
// The Orchestrator owns the live project state. Generate writes (or
// recompiles) the script and requests candidate composites; Select marks a
// candidate; Direct splits the selected candidate, remasters every panel,
// records a history entry, and prefetches per-panel prompts. Every mutation
// emits an Event to subscribers, which is how autosave and the HTTP event
// stream observe the pipeline.
//
// Provider calls run without holding the state lock. Each long operation
// captures an epoch; when Load, Restore, or a newer operation bumps the
// epoch, the older result is discarded instead of applied.
//
// DisplayFor is the pure derivation of what the panel area should show.
package director
