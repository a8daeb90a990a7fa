// Package promptcache memoizes per-panel prompt extraction.
//
// Get returns a cached prompt when present, joins an in-flight extraction
// for the same panel index when one is pending, and otherwise starts a new
// extraction. A failed extraction yields the request's shot description and
// is not cached, so a later Get retries. The pending registry is private to
// the cache; callers only see Get, Prefetch, Cached, Pending, and Reset.
//
// Extractions run detached from the caller's context: a caller that stops
// waiting receives the fallback, while the extraction itself completes and
// populates the cache. Reset bumps a generation counter so results of
// extractions started before the reset are discarded.
package promptcache
