package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("MODEL", "test_model")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("HOTKEY", "Ctrl+Shift+T")
	t.Setenv("OCR_ENGINE", "Vision")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", " chrome-extension://abc , ,moz-extension://def")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Model != "test_model" {
		t.Errorf("Expected Model to be 'test_model', got '%s'", cfg.Model)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.Hotkey != "Ctrl+Shift+T" {
		t.Errorf("Expected Hotkey to be 'Ctrl+Shift+T', got '%s'", cfg.Hotkey)
	}
	if cfg.OCREngine != EngineVision {
		t.Errorf("Expected OCREngine to be %q, got %q", EngineVision, cfg.OCREngine)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected PollInterval 250ms, got %v", cfg.PollInterval)
	}
	want := []string{"chrome-extension://abc", "moz-extension://def"}
	if !reflect.DeepEqual(cfg.BridgeAllowedOrigins, want) {
		t.Errorf("Expected BridgeAllowedOrigins %v, got %v", want, cfg.BridgeAllowedOrigins)
	}
}

func TestDefaults(t *testing.T) {
	for _, k := range []string{"OCR_ENGINE", "STORAGE_BACKEND", "HOTKEY", "BRIDGE_ADDR", "BRIDGE_ALLOWED_ORIGINS", "POLL_INTERVAL_MS", "READINESS_ATTEMPTS", EnvFileEnvVar} {
		t.Setenv(k, "")
	}
	t.Setenv("READINESS_ATTEMPTS", "-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OCREngine != EngineTesseract || cfg.StorageBackend != StorageFile {
		t.Errorf("unexpected engine/backend %q/%q", cfg.OCREngine, cfg.StorageBackend)
	}
	if cfg.Hotkey != DefaultHotkey || cfg.BridgeAddr != DefaultBridgeAddr {
		t.Errorf("unexpected hotkey/bridge %q/%q", cfg.Hotkey, cfg.BridgeAddr)
	}
	if cfg.PollInterval != DefaultPollInterval || cfg.ReadinessAttempts != DefaultAttempts {
		t.Errorf("unexpected poll/attempts %v/%d", cfg.PollInterval, cfg.ReadinessAttempts)
	}
	if len(cfg.BridgeAllowedOrigins) != 0 {
		t.Errorf("expected no allowed origins, got %v", cfg.BridgeAllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textlens.env")
	if err := os.WriteFile(path, []byte("STORAGE_BACKEND=redis\nREDIS_URL=redis://cache:6379/2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("REDIS_URL", "")
	os.Unsetenv("STORAGE_BACKEND")
	os.Unsetenv("REDIS_URL")

	cfg, err := LoadWithOptions(LoadOptions{EnvPathOverride: path, BridgeAddr: ":9999"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageBackend != StorageRedis || cfg.RedisURL != "redis://cache:6379/2" {
		t.Errorf("env file not applied: %q %q", cfg.StorageBackend, cfg.RedisURL)
	}
	if cfg.BridgeAddr != ":9999" {
		t.Errorf("override not applied: %q", cfg.BridgeAddr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{OCREngine: EngineTesseract, StorageBackend: StorageFile, BridgeAddr: "x"}, false},
		{"bad engine", Config{OCREngine: "easyocr", StorageBackend: StorageFile, BridgeAddr: "x"}, true},
		{"bad backend", Config{OCREngine: EngineVision, StorageBackend: "s3", BridgeAddr: "x"}, true},
		{"redis without url", Config{OCREngine: EngineVision, StorageBackend: StorageRedis, BridgeAddr: "x"}, true},
		{"no bridge", Config{OCREngine: EngineVision, StorageBackend: StorageFile}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
