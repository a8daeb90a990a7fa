package grid

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// Split returns exactly n*n cells of img in row-major order, for n in the
// supported grid sizes. Each cell is a fresh RGBA image whose bounds start
// at the origin.
func Split(img image.Image, n int) ([]image.Image, error) {
	if img == nil {
		return nil, services.Wrap(services.ErrMissingInput, "split", "grid", "composite image is required", nil)
	}
	if err := project.ValidateGridSize(n); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	cellW, cellH := CellSize(bounds.Dx(), bounds.Dy(), n)
	if cellW == 0 || cellH == 0 {
		return nil, services.Wrap(services.ErrOutOfRange, "split", "grid",
			fmt.Sprintf("image %dx%d is too small for a %dx%d grid", bounds.Dx(), bounds.Dy(), n, n), nil)
	}

	cells := make([]image.Image, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			src := image.Pt(bounds.Min.X+col*cellW, bounds.Min.Y+row*cellH)
			cell := image.NewRGBA(image.Rect(0, 0, cellW, cellH))
			draw.Draw(cell, cell.Bounds(), img, src, draw.Src)
			cells = append(cells, cell)
		}
	}
	return cells, nil
}

// CellSize is the truncating per-cell size for a w x h composite cut n ways.
func CellSize(w, h, n int) (int, int) {
	if n < 1 {
		return 0, 0
	}
	return w / n, h / n
}

// SplitEncoded decodes a base64 composite, splits it, and re-encodes each
// cell as base64 PNG.
func SplitEncoded(composite string, n int) ([]string, error) {
	img, err := DecodeBase64(composite)
	if err != nil {
		return nil, err
	}
	cells, err := Split(img, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(cells))
	for i, cell := range cells {
		encoded, err := EncodePNGBase64(cell)
		if err != nil {
			return nil, fmt.Errorf("encode cell %d: %w", i, err)
		}
		out[i] = encoded
	}
	return out, nil
}
