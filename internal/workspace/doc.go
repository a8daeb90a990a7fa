// Package workspace keeps the CLI's live project between invocations.
//
// Each director command loads the working copy, applies one operation, and
// writes it back, so `generate`, `select`, and `direct` can run as separate
// processes. The file is plain JSON written atomically through a temp file.
package workspace
