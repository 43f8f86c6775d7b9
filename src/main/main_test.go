package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textlens/src/config"
	"textlens/src/coordinator"
	"textlens/src/credential"
	"textlens/src/messages"
	"textlens/src/presenter"
	"textlens/src/router"
	"textlens/src/runtimeinit"
	"textlens/src/wsbridge"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"textlens", "popup", "-start", "-storage-path", "/tmp/s.json"},
			out:  []string{"textlens", "popup", "--start", "--storage-path", "/tmp/s.json"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"textlens", "serve", "-no-tray=true", "-bridge=:7000"},
			out:  []string{"textlens", "serve", "--no-tray=true", "--bridge=:7000"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"textlens", "--no-tray", "-x", "--other"},
			out:  []string{"textlens", "--no-tray", "-x", "--other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--storage", "redis", "--bridge", "127.0.0.1:9000"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.storage != "redis" {
		t.Fatalf("Expected storage=redis, got %q", opts.storage)
	}
	lo := opts.loadOptions()
	if lo.BridgeAddr != "127.0.0.1:9000" {
		t.Fatalf("Expected bridge override, got %q", lo.BridgeAddr)
	}

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "popup", "set-key"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	root := rootOptions{storage: config.StorageFile, storagePath: path}
	var out bytes.Buffer

	require.NoError(t, runSetKey(context.Background(), &out, root, setKeyOptions{}, " gsk_abcdefghijklmnop "))
	assert.Contains(t, out.String(), "gsk_...mnop")
	assert.NotContains(t, out.String(), "abcdefgh")

	got, err := credential.NewFileStore(path).Get(context.Background(), credential.Key)
	require.NoError(t, err)
	assert.Equal(t, "gsk_abcdefghijklmnop", got)

	require.NoError(t, runSetKey(context.Background(), &out, root, setKeyOptions{remove: true}, ""))
	_, err = credential.NewFileStore(path).Get(context.Background(), credential.Key)
	assert.ErrorIs(t, err, credential.ErrNotFound)

	assert.Error(t, runSetKey(context.Background(), &out, root, setKeyOptions{}, "  "))
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(context.Context, string) (string, error) { return "ok", nil }

type memClipboard struct{ text string }

func (m *memClipboard) Write(text string) error {
	m.text = text
	return nil
}

// startResident runs a coordinator behind a bridge and returns root options
// pointing at it.
func startResident(t *testing.T) rootOptions {
	t.Helper()
	r := router.NewRouter()
	r.SetMessageLogging(false)
	c := coordinator.New(stubAnalyzer{})
	require.NoError(t, c.Start(context.Background(), r))

	ts := httptest.NewServer(wsbridge.NewServer(r).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = c.Stop()
		r.Shutdown()
	})
	return rootOptions{
		storage:     config.StorageFile,
		storagePath: filepath.Join(t.TempDir(), "storage.json"),
		bridgeAddr:  strings.TrimPrefix(ts.URL, "http://"),
	}
}

func TestPopupOverBridge(t *testing.T) {
	root := startResident(t)
	var out bytes.Buffer

	require.NoError(t, runPopup(context.Background(), &out, root, popupOptions{noWait: true}, &memClipboard{}))
	assert.Contains(t, out.String(), "No result yet")
	assert.Contains(t, out.String(), "API key not configured")

	out.Reset()
	require.NoError(t, runPopup(context.Background(), &out, root, popupOptions{clear: true}, &memClipboard{}))
	assert.Contains(t, out.String(), presenter.StatusCleared)

	out.Reset()
	assert.Error(t, runPopup(context.Background(), &out, root, popupOptions{copy: true}, &memClipboard{}))
	assert.Contains(t, out.String(), presenter.StatusCopyFailed)
}

func TestPopupWithoutResident(t *testing.T) {
	root := rootOptions{storagePath: filepath.Join(t.TempDir(), "s.json"), bridgeAddr: "127.0.0.1:1"}
	err := runPopup(context.Background(), &bytes.Buffer{}, root, popupOptions{noWait: true}, &memClipboard{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "textlens serve")
}

func TestNewAppWiring(t *testing.T) {
	t.Setenv("MODEL", "")
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: config.LoadOptions{
		StorageBackend: config.StorageFile,
		StoragePath:    filepath.Join(t.TempDir(), "storage.json"),
		OCREngine:      config.EngineVision,
	}})
	require.NoError(t, err)

	var out bytes.Buffer
	a, err := newApp(context.Background(), rt, &out, false)
	require.NoError(t, err)
	defer a.shutdown()

	assert.True(t, a.manager.IsRunning(messages.ContextBackground))
	assert.True(t, a.manager.IsRunning(messages.PageContext(1)))
	assert.NotNil(t, a.pages.machine())

	v, err := a.popup.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, v.Processing)
	assert.Equal(t, presenter.AdvisoryMissingKey, v.Advisory)
}
