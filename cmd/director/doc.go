// Package main hosts the director CLI.
//
// Each invocation loads the working copy from the state directory, runs one
// orchestrator operation, and writes the working copy back. Pending changes
// are flushed through the autosave coordinator before exit, so a granted
// project folder or cloud session stays in sync without an explicit save.
// `director serve` keeps one orchestrator alive behind the HTTP API instead.
package main
