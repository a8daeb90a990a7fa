// Package textutil sanitizes user-supplied project names for use as file
// and folder names.
package textutil
