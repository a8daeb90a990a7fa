// Package logging assembles structured slog loggers and formatting helpers used
// across the director.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with the project, stage, panel index, and correlation ID. A bounded
// StreamHub keeps recent events in memory for the API's log and event feeds.
package logging
