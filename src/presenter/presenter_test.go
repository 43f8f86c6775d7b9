package presenter

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textlens/src/apperr"
	"textlens/src/credential"
	"textlens/src/handshake"
	"textlens/src/job"
	"textlens/src/messages"
	"textlens/src/notification"
	"textlens/src/screenshot"
)

// scripted answers requests per message type; getResult replies are consumed
// in order and the last one repeats.
type scripted struct {
	mu       sync.Mutex
	results  []messages.ResultReply
	acks     map[string]messages.Message
	pageUp   bool
	requests []string
}

func (s *scripted) Request(_ context.Context, to string, msg messages.Message) (messages.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, to+"/"+msg.Type())

	if messages.IsPageContext(to) && !s.pageUp {
		return nil, apperr.Channel(to, errors.New("not registered"))
	}
	if _, ok := msg.(messages.GetResult); ok {
		if len(s.results) == 0 {
			return messages.ResultReply{}, nil
		}
		r := s.results[0]
		if len(s.results) > 1 {
			s.results = s.results[1:]
		}
		return r, nil
	}
	if r, ok := s.acks[msg.Type()]; ok {
		return r, nil
	}
	return messages.Ack{Success: true}, nil
}

func (s *scripted) Push(string, messages.Message) error { return nil }

type memClipboard struct {
	text string
	err  error
}

func (m *memClipboard) Write(text string) error {
	if m.err != nil {
		return m.err
	}
	m.text = text
	return nil
}

type injectorFunc func(ctx context.Context, target string) error

func (f injectorFunc) Inject(ctx context.Context, target string) error { return f(ctx, target) }

func keyStore(t *testing.T, key string) credential.Store {
	t.Helper()
	s := credential.NewFileStore(filepath.Join(t.TempDir(), "storage.json"))
	if key != "" {
		require.NoError(t, s.Set(context.Background(), credential.Key, key))
	}
	return s
}

var fast = handshake.Policy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}

func done(text, analysis string) *job.Job {
	j := job.Succeeded("id-1", text, analysis, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return &j
}

func TestOpenPollsUntilTerminal(t *testing.T) {
	req := &scripted{results: []messages.ResultReply{
		{IsProcessing: true},
		{IsProcessing: true},
		{Result: done("Hello", "**Hi**")},
	}}
	var renders []View
	p := &Popup{Requester: req, Store: keyStore(t, "gsk_x"), Interval: time.Millisecond, OnRender: func(v View) { renders = append(renders, v) }}

	v, err := p.Open(context.Background())
	require.NoError(t, err)
	assert.False(t, v.Processing)
	require.NotNil(t, v.Result)
	assert.Equal(t, "Hello", v.Result.ExtractedText)
	assert.Empty(t, v.Advisory)
	require.Len(t, renders, 3)
	assert.True(t, renders[0].Processing)
}

func TestOpenShowsStoredError(t *testing.T) {
	failed := job.Failed("id-2", apperr.OCREmpty(), time.Now())
	req := &scripted{results: []messages.ResultReply{{Result: &failed}}}
	p := &Popup{Requester: req, Store: keyStore(t, "gsk_x")}

	v, err := p.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No text found in the selected area", v.Status)
	assert.Equal(t, KindError, v.StatusKind)
}

func TestAdvisoryWhenKeyMissing(t *testing.T) {
	p := &Popup{Requester: &scripted{}, Store: keyStore(t, "")}

	v, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AdvisoryMissingKey, v.Advisory)
	assert.Nil(t, v.Result)
}

func TestStartSelectionInjectsPage(t *testing.T) {
	req := &scripted{}
	injected := 0
	p := &Popup{
		Requester: req,
		Page:      messages.PageContext(1),
		Policy:    fast,
		Injector: injectorFunc(func(context.Context, string) error {
			injected++
			req.mu.Lock()
			req.pageUp = true
			req.mu.Unlock()
			return nil
		}),
	}

	require.NoError(t, p.StartSelection(context.Background()))
	assert.Equal(t, 1, injected)
	assert.Equal(t, StatusSelectReady, p.View().Status)
	assert.Equal(t, "background/startSelection", req.requests[0])
	assert.Equal(t, "page:1/initSelection", req.requests[len(req.requests)-1])
}

func TestStartSelectionPageUnreachable(t *testing.T) {
	p := &Popup{
		Requester: &scripted{},
		Page:      messages.PageContext(1),
		Policy:    fast,
		Injector:  injectorFunc(func(context.Context, string) error { return errors.New("restricted page") }),
	}

	require.Error(t, p.StartSelection(context.Background()))
	assert.Equal(t, "Error: "+StatusPageFailed, p.View().Status)
}

func TestCopy(t *testing.T) {
	req := &scripted{results: []messages.ResultReply{{Result: done("Hello", "World")}}}
	clip := &memClipboard{}
	p := &Popup{Requester: req, Clipboard: clip}

	require.NoError(t, p.Copy(context.Background()))
	assert.Equal(t, "Extracted Text:\nHello\n\nAI Analysis:\nWorld", clip.text)
	assert.Equal(t, StatusCopied, p.View().Status)
}

func TestCopyFailures(t *testing.T) {
	p := &Popup{Requester: &scripted{}, Clipboard: &memClipboard{}}
	require.Error(t, p.Copy(context.Background()))
	assert.Equal(t, StatusCopyFailed, p.View().Status)

	req := &scripted{results: []messages.ResultReply{{Result: done("a", "b")}}}
	p = &Popup{Requester: req, Clipboard: &memClipboard{err: errors.New("no display")}}
	require.Error(t, p.Copy(context.Background()))
	assert.Equal(t, StatusCopyFailed, p.View().Status)
}

func TestClear(t *testing.T) {
	p := &Popup{Requester: &scripted{}}
	require.NoError(t, p.Clear(context.Background()))
	assert.Equal(t, StatusCleared, p.View().Status)

	p = &Popup{Requester: &scripted{acks: map[string]messages.Message{
		messages.TypeClearResult: messages.Ack{Success: false, Error: "boom"},
	}}}
	require.Error(t, p.Clear(context.Background()))
	assert.Equal(t, StatusClearFailed, p.View().Status)
}

type recorder struct{ notices []notification.Notice }

func (r *recorder) Notify(kind notification.Kind, text string) {
	r.notices = append(r.notices, notification.Notice{Kind: kind, Text: text})
}

func TestCalloutAnchorsBelowSelection(t *testing.T) {
	rec := &recorder{}
	c := &Callout{Notifier: rec}

	v := c.ShowResult(screenshot.Rect{Left: 100, Top: 200, Width: 50, Height: 40}, " Hello \n", "\nWorld ")
	assert.Equal(t, 100, v.Left)
	assert.Equal(t, 250, v.Top)
	assert.Equal(t, "📄 Extracted Text:\nHello\n\n🔍 Analysis:\nWorld", v.Text)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, v, cur)
	require.Len(t, rec.notices, 1)
	assert.Equal(t, notification.Success, rec.notices[0].Kind)

	c.ShowResult(screenshot.Rect{Left: 1, Top: 1, Width: 20, Height: 20}, "x", "y")
	cur, _ = c.Current()
	assert.Equal(t, 31, cur.Top, "a new result replaces the old callout")

	c.Dismiss()
	_, ok = c.Current()
	assert.False(t, ok)
}

func TestCalloutError(t *testing.T) {
	rec := &recorder{}
	c := &Callout{Notifier: rec}
	c.ShowError("OCR failed")

	_, ok := c.Current()
	assert.False(t, ok)
	require.Len(t, rec.notices, 1)
	assert.Equal(t, "Error: OCR failed", rec.notices[0].Text)
}

func TestRenderPopup(t *testing.T) {
	out := RenderPopup(View{Result: done("Hello", "1. one\n2. two\n\n```\ncode\n```")})
	assert.Contains(t, out, "Extracted Text")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "1. one")
	assert.Contains(t, out, "code")

	out = RenderPopup(View{Processing: true, Advisory: AdvisoryMissingKey})
	assert.Contains(t, out, "Processing")
	assert.Contains(t, out, "API key not configured")
}

func TestRenderAnalysisStripsMarkup(t *testing.T) {
	out := RenderAnalysis("# Title\n\n**bold** and *em*")
	assert.Contains(t, out, "Title")
	assert.NotContains(t, out, "**")
	assert.True(t, strings.Contains(out, "bold and em"))
}
