package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textlens/src/coordinator"
	"textlens/src/router"
	"textlens/src/wsbridge"
)

type noopAnalyzer struct{}

func (noopAnalyzer) Analyze(context.Context, string) (string, error) { return "", nil }

func TestNewRootCmdFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--n", "3", "--requests", "2", "--deadline", "1s"}))
	assert.Equal(t, 3, opts.n)
	assert.Equal(t, 2, opts.requests)
	assert.Equal(t, time.Second, opts.deadline)
}

func TestStressAgainstBridge(t *testing.T) {
	r := router.NewRouter()
	r.SetMessageLogging(false)
	c := coordinator.New(noopAnalyzer{})
	require.NoError(t, c.Start(context.Background(), r))
	ts := httptest.NewServer(wsbridge.NewServer(r).Handler())
	defer func() {
		ts.Close()
		_ = c.Stop()
		r.Shutdown()
	}()

	got := runWithOptions(stressOptions{
		n:        8,
		requests: 3,
		addr:     strings.TrimPrefix(ts.URL, "http://"),
		deadline: 5 * time.Second,
	})
	assert.EqualValues(t, 24, got.ok)
	assert.Zero(t, got.err)
	assert.Zero(t, got.conflict)
}
