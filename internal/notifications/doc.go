// Package notifications delivers pipeline milestones via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Each
// milestone can also be switched off individually in config.toml.
package notifications
