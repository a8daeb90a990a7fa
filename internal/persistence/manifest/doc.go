// Package manifest encodes and decodes project manifests.
//
// A manifest is a field-for-field serialization of project.State with no
// schema version. JSON is the native form written by every store; YAML is
// accepted for import and export so hand-edited projects round-trip. Decoded
// manifests have missing settings filled with project defaults.
package manifest
