// Package grid cuts a composite contact sheet into its ordered panels and
// provides the small image codec helpers the pipeline needs: base64 PNG
// decoding and encoding, and downscaling panels before analysis.
//
// Split is pure and deterministic. Cells are floor(W/n) by floor(H/n) pixels
// in row-major order; remainder pixels on the right and bottom edges are
// dropped, never stretched.
package grid
