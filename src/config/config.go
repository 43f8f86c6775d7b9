package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar = "TEXTLENS_ENV"

	StorageFile  = "file"
	StorageRedis = "redis"

	EngineTesseract = "tesseract"
	EngineVision    = "vision"

	DefaultBridgeAddr   = "127.0.0.1:7313"
	DefaultHotkey       = "Ctrl+Alt+L"
	DefaultOCRLanguage  = "eng"
	DefaultPollInterval = time.Second
	DefaultAttempts     = 3
)

// LoadOptions carries command-line overrides. Empty fields are ignored.
type LoadOptions struct {
	EnvPathOverride string
	StorageBackend  string
	StoragePath     string
	OCREngine       string
	BridgeAddr      string
}

type Config struct {
	Model             string
	CompletionURL     string
	OCREngine         string
	OCRLanguage       string
	StorageBackend    string
	StoragePath       string
	RedisURL          string
	Hotkey            string
	BridgeAddr        string

	// BridgeAllowedOrigins lists browser origins allowed to attach to the
	// bridge. Clients that send no Origin header are always accepted.
	BridgeAllowedOrigins []string

	PollInterval      time.Duration
	ReadinessAttempts int
	EnableFileLogging bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env next to the executable
	// 2) the file named by TEXTLENS_ENV
	// Variables already in the environment win over both.
	envPath := strings.TrimSpace(opts.EnvPathOverride)
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", envPath, err)
		}
	}

	cfg := &Config{
		Model:             os.Getenv("MODEL"),
		CompletionURL:     os.Getenv("COMPLETION_URL"),
		OCREngine:         strings.ToLower(getEnvWithDefault("OCR_ENGINE", EngineTesseract)),
		OCRLanguage:       getEnvWithDefault("OCR_LANGUAGE", DefaultOCRLanguage),
		StorageBackend:    strings.ToLower(getEnvWithDefault("STORAGE_BACKEND", StorageFile)),
		StoragePath:       os.Getenv("STORAGE_PATH"),
		RedisURL:          getEnvWithDefault("REDIS_URL", "redis://127.0.0.1:6379/0"),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
		BridgeAddr:        getEnvWithDefault("BRIDGE_ADDR", DefaultBridgeAddr),
		PollInterval:      time.Duration(positiveInt("POLL_INTERVAL_MS", int(DefaultPollInterval/time.Millisecond))) * time.Millisecond,
		ReadinessAttempts: positiveInt("READINESS_ATTEMPTS", DefaultAttempts),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
	}

	cfg.BridgeAllowedOrigins = splitList(os.Getenv("BRIDGE_ALLOWED_ORIGINS"))

	applyOverrides(cfg, opts)
	return cfg, nil
}

func applyOverrides(cfg *Config, opts LoadOptions) {
	if v := strings.TrimSpace(opts.StorageBackend); v != "" {
		cfg.StorageBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(opts.StoragePath); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(opts.OCREngine); v != "" {
		cfg.OCREngine = strings.ToLower(v)
	}
	if v := strings.TrimSpace(opts.BridgeAddr); v != "" {
		cfg.BridgeAddr = v
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.OCREngine {
	case EngineTesseract, EngineVision:
	default:
		return fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", EngineTesseract, EngineVision, c.OCREngine)
	}
	switch c.StorageBackend {
	case StorageFile, StorageRedis:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageFile, StorageRedis, c.StorageBackend)
	}
	if c.StorageBackend == StorageRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis storage backend")
	}
	if c.BridgeAddr == "" {
		return fmt.Errorf("BRIDGE_ADDR must not be empty")
	}
	return nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func positiveInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
