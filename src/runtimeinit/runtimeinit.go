// Package runtimeinit wires configuration, logging and the adapters shared
// by the resident process and the one-shot CLI.
package runtimeinit

import (
	"fmt"
	"io"
	"log"

	"textlens/src/config"
	"textlens/src/credential"
	"textlens/src/handshake"
	"textlens/src/llm"
	"textlens/src/ocr"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
}

// Runtime holds the shared components.
type Runtime struct {
	Config     *config.Config
	Store      credential.Store
	LLM        *llm.Client
	Recognizer *ocr.Recognizer
}

// Policy is the readiness policy with the configured attempt count.
func (r *Runtime) Policy() handshake.Policy {
	p := handshake.DefaultPolicy
	if r.Config.ReadinessAttempts > 0 {
		p.Attempts = r.Config.ReadinessAttempts
	}
	return p
}

// Close releases the credential store.
func (r *Runtime) Close() error {
	if c, ok := r.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Bootstrap loads configuration and builds the adapters. The OCR engine is
// not probed here; the recognizer checks it on first use.
func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	client := llm.New(cfg.CompletionURL, cfg.Model, store)
	engine, err := ocr.NewEngine(cfg.OCREngine, cfg.OCRLanguage, client)
	if err != nil {
		return nil, err
	}

	log.Printf("TextLens runtime: model=%s engine=%s storage=%s", client.Model, engine.Name(), cfg.StorageBackend)
	return &Runtime{
		Config:     cfg,
		Store:      store,
		LLM:        client,
		Recognizer: ocr.NewRecognizer(engine),
	}, nil
}

// OpenStore opens the configured credential backend.
func OpenStore(cfg *config.Config) (credential.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		s, err := credential.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis storage: %w", err)
		}
		return s, nil
	default:
		path := cfg.StoragePath
		if path == "" {
			p, err := credential.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return credential.NewFileStore(path), nil
	}
}
