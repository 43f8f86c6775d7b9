package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"

	"textlens/src/apperr"
)

// MinSize is the smallest accepted selection edge in pixels.
const MinSize = 10

// Rect is a selection rectangle in virtual-screen coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Bounds converts r to an image rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// TooSmall reports whether either dimension is below MinSize.
func (r Rect) TooSmall() bool {
	return r.Width < MinSize || r.Height < MinSize
}

// Capturer renders a screen region as PNG bytes.
type Capturer interface {
	Capture(r Rect) ([]byte, error)
}

var errNoDisplay = errors.New("no active displays found")

// Screen captures from the attached displays.
type Screen struct{}

// Capture captures a specific region of the screen
func (Screen) Capture(r Rect) ([]byte, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.Width, r.Height)
	}
	screen, err := VirtualBounds()
	if err != nil {
		return nil, err
	}
	area := r.Bounds().Intersect(screen)
	if area.Empty() {
		return nil, apperr.CaptureUnavailable(fmt.Errorf("region %v is outside the screen %v", r.Bounds(), screen))
	}

	img, err := screenshot.CaptureRect(area)
	if err != nil {
		return nil, apperr.CaptureUnavailable(err)
	}
	return EncodePNG(img)
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// VirtualBounds returns the union of all display bounds.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, apperr.CaptureUnavailable(errNoDisplay)
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}
