// Package remaster runs the per-panel enhancement pass over a split
// composite.
//
// Cells are processed strictly one after another. A failed cell keeps its
// original crop, so a batch of n cells always yields n panels. A fixed delay
// follows each successful call while cells remain. When a batch saver is
// available the source composite and the resulting panels are persisted as
// one batch; a save failure is logged and does not affect the panels.
package remaster
