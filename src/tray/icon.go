package tray

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const iconSize = 16

var (
	frameColor = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	lensColor  = color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// Icon renders the tray icon: a dashed selection frame with a lens in the
// lower right corner, encoded as PNG.
func Icon() ([]byte, error) {
	img := imaging.New(iconSize, iconSize, color.NRGBA{})
	drawFrame(img, 2, 2, 11, 9)
	drawLens(img, 11, 11, 3)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawFrame(img *image.NRGBA, x0, y0, x1, y1 int) {
	for x := x0; x <= x1; x++ {
		if x%3 != 2 {
			img.SetNRGBA(x, y0, frameColor)
			img.SetNRGBA(x, y1, frameColor)
		}
	}
	for y := y0; y <= y1; y++ {
		if y%3 != 2 {
			img.SetNRGBA(x0, y, frameColor)
			img.SetNRGBA(x1, y, frameColor)
		}
	}
}

func drawLens(img *image.NRGBA, cx, cy, r int) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			d := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			if d <= r*r && d >= (r-1)*(r-1) {
				img.SetNRGBA(x, y, lensColor)
			}
		}
	}
	for i := 1; i <= 2; i++ {
		if cx+r+i-1 < iconSize && cy+r+i-1 < iconSize {
			img.SetNRGBA(cx+r+i-1, cy+r+i-1, lensColor)
		}
	}
}
