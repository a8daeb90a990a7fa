package testsupport

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/bozzyboy/nano-director-5/internal/grid"
)

// Composite builds a w x h image whose n x n cells are filled with distinct
// colours, so split results can be told apart.
func Composite(w, h, n int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	cw, ch := w/n, h/n
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			col, row := n-1, n-1
			if cw > 0 && x/cw < n {
				col = x / cw
			}
			if ch > 0 && y/ch < n {
				row = y / ch
			}
			img.Set(x, y, CellColor(row*n+col))
		}
	}
	return img
}

// CellColor is the fill colour Composite uses for cell index i.
func CellColor(i int) color.RGBA {
	return color.RGBA{R: uint8(40 + 13*i), G: uint8(200 - 11*i), B: uint8(17 * i), A: 255}
}

// CompositeBase64 returns Composite encoded as base64 PNG.
func CompositeBase64(t testing.TB, w, h, n int) string {
	t.Helper()
	encoded, err := grid.EncodePNGBase64(Composite(w, h, n))
	if err != nil {
		t.Fatalf("encode composite: %v", err)
	}
	return encoded
}

// SolidBase64 returns a w x h single-colour PNG as base64.
func SolidBase64(t testing.TB, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	encoded, err := grid.EncodePNGBase64(img)
	if err != nil {
		t.Fatalf("encode solid: %v", err)
	}
	return encoded
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
