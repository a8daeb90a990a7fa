// Package preflight provides readiness checks for the generation provider,
// cloud storage, and the local directories the director writes to.
//
// The CLI "director check" command runs RunAll and prints each Result.
// Checks for optional features are skipped when the feature is not
// configured.
package preflight
