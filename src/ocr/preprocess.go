package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// smallEdge is the width below which captures are upscaled before OCR.
const smallEdge = 600

// Preprocess converts a capture to grayscale and doubles images narrower
// than smallEdge.
func Preprocess(png []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := imaging.Grayscale(img)
	if b := gray.Bounds(); b.Dx() < smallEdge {
		gray = imaging.Resize(gray, b.Dx()*2, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
