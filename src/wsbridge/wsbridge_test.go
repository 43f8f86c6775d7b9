package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textlens/src/apperr"
	"textlens/src/messages"
	"textlens/src/router"
)

func startBridge(t *testing.T, allowedOrigins ...string) (*router.Router, string) {
	t.Helper()
	r := router.NewRouter()
	r.SetMessageLogging(false)
	ts := httptest.NewServer(NewServer(r, allowedOrigins...).Handler())
	t.Cleanup(func() {
		ts.Close()
		r.Shutdown()
	})
	return r, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, r *router.Router, base, name string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, base, name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.Eventually(t, func() bool { return r.IsRegistered(name) }, 2*time.Second, 5*time.Millisecond)
	return c
}

// serveBackground answers every request with an ack naming the message type.
func serveBackground(t *testing.T, r *router.Router) {
	t.Helper()
	ch, err := r.Register(messages.ContextBackground, 8)
	require.NoError(t, err)
	go func() {
		for env := range ch {
			env.Respond(messages.Ack{Success: true, Error: env.Message.Type()})
		}
	}()
}

func TestRouterRequestReachesRemoteContext(t *testing.T) {
	r, base := startBridge(t)
	c := dial(t, r, base, "page:1")

	go func() {
		for env := range c.Envelopes() {
			if _, ok := env.Message.(messages.Ping); ok {
				env.Respond(messages.Ack{Success: true})
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := r.Request(ctx, messages.MessageEnvelope{From: messages.ContextPopup, To: "page:1", Message: messages.Ping{}})
	require.NoError(t, err)
	assert.Equal(t, messages.Ack{Success: true}, reply)
}

func TestRemoteRequestReachesRouter(t *testing.T) {
	r, base := startBridge(t)
	serveBackground(t, r)
	c := dial(t, r, base, messages.ContextPopup)

	reply, err := c.Request(context.Background(), messages.ContextBackground, messages.GetResult{})
	require.NoError(t, err)
	assert.Equal(t, messages.Ack{Success: true, Error: messages.TypeGetResult}, reply)
}

func TestRemoteRequestUnknownTarget(t *testing.T) {
	r, base := startBridge(t)
	c := dial(t, r, base, messages.ContextPopup)

	_, err := c.Request(context.Background(), "page:9", messages.Ping{})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeChannel, apperr.CodeOf(err))
}

func TestPushReachesRemoteContext(t *testing.T) {
	r, base := startBridge(t)
	c := dial(t, r, base, "page:1")

	require.NoError(t, r.Send(messages.MessageEnvelope{
		From:    messages.ContextBackground,
		To:      "page:1",
		Message: messages.ProcessingError{Error: "OCR failed"},
	}))

	select {
	case env := <-c.Envelopes():
		assert.False(t, env.IsRequest())
		assert.Equal(t, messages.ProcessingError{Error: "OCR failed"}, env.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("push not delivered")
	}
}

func TestDisconnectFailsPendingRequests(t *testing.T) {
	r, base := startBridge(t)
	c := dial(t, r, base, "page:1")

	errc := make(chan error, 1)
	go func() {
		_, err := r.Request(context.Background(), messages.MessageEnvelope{From: messages.ContextBackground, To: "page:1", Message: messages.PerformOCR{ImageData: []byte("png")}})
		errc <- err
	}()

	<-c.Envelopes()
	require.NoError(t, c.Close())

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Equal(t, apperr.CodeChannel, apperr.CodeOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("request not failed")
	}
	assert.Eventually(t, func() bool { return !r.IsRegistered("page:1") }, 2*time.Second, 5*time.Millisecond)
}

func TestDuplicateContextRejected(t *testing.T) {
	r, base := startBridge(t)
	dial(t, r, base, "page:1")

	_, err := Dial(context.Background(), base, "page:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestBackgroundNameReserved(t *testing.T) {
	_, base := startBridge(t)
	_, err := Dial(context.Background(), base, messages.ContextBackground)
	require.Error(t, err)
}

func dialWithOrigin(base, origin string) (*websocket.Conn, *http.Response, error) {
	h := http.Header{}
	h.Set("Origin", origin)
	return websocket.DefaultDialer.Dial(base+Path+"?context="+messages.ContextPopup, h)
}

func TestForeignOriginRejected(t *testing.T) {
	r, base := startBridge(t, "chrome-extension://textlens")

	conn, resp, err := dialWithOrigin(base, "https://evil.example")
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, r.IsRegistered(messages.ContextPopup))
}

func TestAllowedOriginAccepted(t *testing.T) {
	r, base := startBridge(t, "chrome-extension://textlens")

	conn, _, err := dialWithOrigin(base, "chrome-extension://textlens")
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return r.IsRegistered(messages.ContextPopup) }, 2*time.Second, 5*time.Millisecond)
}
