package nlmserver

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1024
	jpegQuality   = 85
)

// NormalizeImage downsizes oversized infographics and re-encodes them as
// JPEG so tool responses stay reasonably small. Formats the stdlib decoder
// does not know (webp in practice) pass through untouched with a sniffed
// MIME type.
func NormalizeImage(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("normalize image: empty payload")
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, http.DetectContentType(data), nil
	}
	bounds := src.Bounds()
	if bounds.Dx() <= maxImageWidth {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("normalize image: encode: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}

	height := bounds.Dy() * maxImageWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("normalize image: encode: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
