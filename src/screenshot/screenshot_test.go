package screenshot

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"textlens/src/apperr"
)

func TestRectTooSmall(t *testing.T) {
	cases := []struct {
		r    Rect
		want bool
	}{
		{Rect{Width: 10, Height: 10}, false},
		{Rect{Width: 9, Height: 100}, true},
		{Rect{Width: 100, Height: 9}, true},
		{Rect{Width: 0, Height: 0}, true},
	}
	for _, c := range cases {
		if got := c.r.TooSmall(); got != c.want {
			t.Errorf("%+v.TooSmall() = %v, want %v", c.r, got, c.want)
		}
	}
}

func TestRectBounds(t *testing.T) {
	b := Rect{Left: 5, Top: 7, Width: 20, Height: 30}.Bounds()
	if b != image.Rect(5, 7, 25, 37) {
		t.Fatalf("unexpected bounds %v", b)
	}
}

func TestEncodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("missing PNG signature")
	}
}

func TestCaptureInvalidRegion(t *testing.T) {
	if _, err := (Screen{}).Capture(Rect{}); err == nil {
		t.Error("Expected error for invalid region dimensions")
	}
}

func TestCaptureRegion(t *testing.T) {
	_, err := (Screen{}).Capture(Rect{Width: 100, Height: 100})
	if err != nil {
		if !errors.Is(err, apperr.ErrCaptureUnavailable) {
			t.Fatalf("expected CaptureUnavailable, got %v", err)
		}
		t.Skipf("no display available: %v", err)
	}
}

func TestCaptureOffScreen(t *testing.T) {
	_, err := (Screen{}).Capture(Rect{Left: -1 << 20, Top: -1 << 20, Width: 50, Height: 50})
	if !errors.Is(err, apperr.ErrCaptureUnavailable) {
		t.Fatalf("expected CaptureUnavailable, got %v", err)
	}
}
