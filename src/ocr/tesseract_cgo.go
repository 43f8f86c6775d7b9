//go:build cgo

package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs the local Tesseract library.
type TesseractEngine struct {
	Language string
}

func (t *TesseractEngine) Name() string { return EngineTesseract }

func (t *TesseractEngine) Check(context.Context) error {
	client := gosseract.NewClient()
	defer client.Close()
	if client.Version() == "" {
		return errors.New("tesseract library not found")
	}
	return nil
}

func (t *TesseractEngine) Recognize(ctx context.Context, png []byte) (string, error) {
	prepared, err := Preprocess(png)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.Language != "" {
		if err := client.SetLanguage(t.Language); err != nil {
			return "", fmt.Errorf("failed to set language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(prepared); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}
	return text, nil
}
