// Package api exposes one director orchestrator over HTTP.
//
// The server owns no pipeline logic. Every route translates a JSON request
// into an orchestrator or persistence router call and renders the result:
//
//   - project routes read the working state and apply validated setters
//   - pipeline routes run Generate, Select, Direct, and Restore
//   - persistence routes save, load, import, and export manifests
//   - /api/logs serves the in-memory log stream with since/follow/tail
//   - /api/events upgrades to a websocket carrying orchestrator events and
//     log lines as they are published
//
// Errors are rendered as ErrorResponse with a status derived from the
// services error markers, so clients branch on kind rather than on message
// text. State changes are forwarded to the autosave coordinator when one is
// configured.
package api
