package grid

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

// StripDataURI removes a "data:<mime>;base64," prefix when present.
func StripDataURI(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "data:") {
		if idx := strings.Index(value, ","); idx >= 0 {
			return value[idx+1:]
		}
	}
	return value
}

// DecodeBytes base64-decodes an image payload, accepting data URIs.
func DecodeBytes(encoded string) ([]byte, error) {
	raw := StripDataURI(encoded)
	if raw == "" {
		return nil, services.Wrap(services.ErrMissingInput, "decode", "image", "image data is empty", nil)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrOutOfRange, "decode", "image", "invalid base64 image data", err)
	}
	return data, nil
}

// DecodeBase64 decodes a base64 PNG or JPEG into an image.
func DecodeBase64(encoded string) (image.Image, error) {
	data, err := DecodeBytes(encoded)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrOutOfRange, "decode", "image", "unsupported image data", err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 encodes img as a base64 PNG string without a data URI prefix.
func EncodePNGBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Downscale shrinks img so neither side exceeds maxDim, keeping the aspect
// ratio. Images already within bounds are returned unchanged.
func Downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	var tw, th int
	if w >= h {
		tw = maxDim
		th = max(1, h*maxDim/w)
	} else {
		th = maxDim
		tw = max(1, w*maxDim/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// AnalysisJPEG prepares a base64 panel for a vision request: decoded,
// downscaled to maxDim, and re-encoded as quality 80 JPEG.
func AnalysisJPEG(encoded string, maxDim int) (string, error) {
	img, err := DecodeBase64(encoded)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Downscale(img, maxDim), &jpeg.Options{Quality: 80}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
