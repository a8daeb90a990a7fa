// Package services defines shared utilities consumed by the pipeline
// components and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project names, stage names, panel indices,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper. Every failure belongs to
//     one family (provider, persistence, validation, configuration) so callers
//     can decide whether to abort a phase, degrade a single panel, or swallow
//     the error during autosave.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
