// Package fileutil holds small file helpers shared by the stores: atomic
// replace-by-rename writes and read-back verification for image assets.
package fileutil
