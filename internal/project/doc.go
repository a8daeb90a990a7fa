// Package project defines the storyboard data model shared by every pipeline
// component: ProjectState, Script, StylePreferences, HistoryItem, and the
// enumerations for style modes, camera shots, aspect ratios, and resolutions.
//
// The JSON field names match the persisted manifest format, so a ProjectState
// can be written and read by any persistence destination unchanged. Values
// returned from Clone share no mutable memory with the receiver.
package project
