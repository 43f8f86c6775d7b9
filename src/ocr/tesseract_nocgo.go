//go:build !cgo

package ocr

import (
	"context"
	"errors"
)

// TesseractEngine needs cgo; without it the engine always reports unavailable.
type TesseractEngine struct {
	Language string
}

func (t *TesseractEngine) Name() string { return EngineTesseract }

func (t *TesseractEngine) Check(context.Context) error {
	return errors.New("built without cgo, tesseract is not linked")
}

func (t *TesseractEngine) Recognize(context.Context, []byte) (string, error) {
	return "", errors.New("tesseract is not linked")
}
