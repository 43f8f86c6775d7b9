// Package ocr is the Recognition Adapter: image bytes in, text out.
package ocr

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"textlens/src/apperr"
)

// Engine names
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
)

// Engine is one OCR backend.
type Engine interface {
	Name() string
	// Check verifies the engine can run. It is called once, before first use.
	Check(ctx context.Context) error
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Recognizer verifies its engine lazily and exactly once. A failed check is
// remembered; later calls fail fast with the same error.
type Recognizer struct {
	engine   Engine
	once     sync.Once
	checkErr error
}

func NewRecognizer(e Engine) *Recognizer {
	return &Recognizer{engine: e}
}

// Recognize extracts text from a PNG image. Empty text is not an error here.
func (r *Recognizer) Recognize(ctx context.Context, png []byte) (string, error) {
	r.once.Do(func() {
		if err := r.engine.Check(ctx); err != nil {
			log.Printf("OCR: engine %s unavailable: %v", r.engine.Name(), err)
			r.checkErr = apperr.OCRUnavailable(r.engine.Name(), err)
			return
		}
		log.Printf("OCR: engine %s ready", r.engine.Name())
	})
	if r.checkErr != nil {
		return "", r.checkErr
	}

	text, err := r.engine.Recognize(ctx, png)
	if err != nil {
		return "", apperr.OCRFailed(err)
	}
	return strings.TrimSpace(text), nil
}

// VisionQuerier is the part of the completion client the vision engine uses.
type VisionQuerier interface {
	QueryVision(ctx context.Context, png []byte) (string, error)
}

// VisionEngine transcribes images with a vision-capable chat model.
type VisionEngine struct {
	Client VisionQuerier
}

func (v VisionEngine) Name() string { return EngineVision }

func (v VisionEngine) Check(context.Context) error {
	if v.Client == nil {
		return fmt.Errorf("no vision client configured")
	}
	return nil
}

func (v VisionEngine) Recognize(ctx context.Context, png []byte) (string, error) {
	return v.Client.QueryVision(ctx, png)
}

// NewEngine builds the engine named by the configuration.
func NewEngine(name, language string, vision VisionQuerier) (Engine, error) {
	switch strings.ToLower(name) {
	case "", EngineTesseract:
		return &TesseractEngine{Language: language}, nil
	case EngineVision:
		return VisionEngine{Client: vision}, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", name)
	}
}
