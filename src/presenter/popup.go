// Package presenter renders job state: the popup panel that polls the
// coordinator and the callout a page draws next to the selection.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"textlens/src/clipboard"
	"textlens/src/credential"
	"textlens/src/handshake"
	"textlens/src/job"
	"textlens/src/messages"
	"textlens/src/router"
)

// Popup status texts.
const (
	StatusPreparing     = "Preparing selection mode..."
	StatusSelectReady   = "Click and drag to select text area on the page"
	StatusPageFailed    = "Failed to communicate with page. Please refresh and try again."
	StatusCopied        = "Results copied to clipboard!"
	StatusCopyFailed    = "Failed to copy to clipboard"
	StatusCleared       = "Results cleared"
	StatusClearFailed   = "Error clearing results"
	StatusPollFailed    = "Error checking results"
	AdvisoryMissingKey  = "API key not configured. Run: textlens set-key <key>"
	DefaultPollInterval = time.Second
)

// StatusKind styles a status line.
type StatusKind string

const (
	KindSuccess StatusKind = "success"
	KindError   StatusKind = "error"
	KindWarning StatusKind = "warning"
)

// View is what the popup currently shows.
type View struct {
	Processing bool
	Result     *job.Job
	Status     string
	StatusKind StatusKind
	Advisory   string
}

// Popup is the pull side of the protocol. It never receives pushes.
type Popup struct {
	Requester router.Requester
	Store     credential.Store
	Clipboard clipboard.Writer
	Injector  handshake.Injector
	Policy    handshake.Policy
	Page      string
	Interval  time.Duration
	// OnRender, when set, receives every view change.
	OnRender func(View)

	mu   sync.Mutex
	view View
}

func (p *Popup) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

// View returns the last rendered view.
func (p *Popup) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *Popup) render(v View) View {
	p.mu.Lock()
	p.view = v
	p.mu.Unlock()
	if p.OnRender != nil {
		p.OnRender(v)
	}
	return v
}

// Open reads the current state. While the coordinator reports processing it
// polls at the configured interval, then renders the terminal state and stops.
func (p *Popup) Open(ctx context.Context) (View, error) {
	v, err := p.Refresh(ctx)
	if err != nil || !v.Processing {
		return v, err
	}

	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.View(), ctx.Err()
		case <-ticker.C:
			v, err = p.Refresh(ctx)
			if err != nil || !v.Processing {
				return v, err
			}
		}
	}
}

// Refresh issues one getResult and renders the answer.
func (p *Popup) Refresh(ctx context.Context) (View, error) {
	reply, err := p.Requester.Request(ctx, messages.ContextBackground, messages.GetResult{})
	if err != nil {
		log.Printf("Popup: getResult failed: %v", err)
		return p.render(View{Status: StatusPollFailed, StatusKind: KindError, Advisory: p.advisory(ctx)}), err
	}
	res, ok := reply.(messages.ResultReply)
	if !ok {
		err := fmt.Errorf("unexpected reply %s", reply.Type())
		return p.render(View{Status: StatusPollFailed, StatusKind: KindError}), err
	}

	v := View{Processing: res.IsProcessing, Advisory: p.advisory(ctx)}
	if !res.IsProcessing && res.Result != nil {
		v.Result = res.Result
		if res.Result.Error != "" {
			v.Status, v.StatusKind = res.Result.Error, KindError
		}
	}
	return p.render(v), nil
}

// advisory checks the credential independently of the job state.
func (p *Popup) advisory(ctx context.Context) string {
	if p.Store == nil || credential.Configured(ctx, p.Store) {
		return ""
	}
	return AdvisoryMissingKey
}

// StartSelection resets the coordinator, makes sure the page context is
// loaded and asks it to enter selection mode.
func (p *Popup) StartSelection(ctx context.Context) error {
	p.render(View{Status: StatusPreparing, StatusKind: KindSuccess})

	if err := p.expectAck(ctx, messages.ContextBackground, messages.StartSelection{}); err != nil {
		return p.fail(fmt.Errorf("startSelection: %w", err))
	}

	reply, err := handshake.Deliver(ctx, p.Requester, p.Page, messages.InitSelection{}, p.Injector, p.Policy)
	if err != nil {
		log.Printf("Popup: initSelection on %s failed: %v", p.Page, err)
		p.render(View{Status: "Error: " + StatusPageFailed, StatusKind: KindError})
		return err
	}
	if ack, ok := reply.(messages.Ack); !ok || !ack.Success {
		p.render(View{Status: "Error: " + StatusPageFailed, StatusKind: KindError})
		return fmt.Errorf("page %s rejected initSelection", p.Page)
	}

	p.render(View{Status: StatusSelectReady, StatusKind: KindSuccess})
	return nil
}

// Copy puts the current result on the clipboard.
func (p *Popup) Copy(ctx context.Context) error {
	v := p.View()
	if v.Result == nil || v.Result.Error != "" {
		var err error
		if v, err = p.Refresh(ctx); err != nil {
			return err
		}
	}
	if v.Result == nil || v.Result.Error != "" {
		p.render(View{Status: StatusCopyFailed, StatusKind: KindError, Result: v.Result})
		return errors.New("no result to copy")
	}

	if err := p.Clipboard.Write(CopyText(*v.Result)); err != nil {
		log.Printf("Popup: clipboard write failed: %v", err)
		p.render(View{Status: StatusCopyFailed, StatusKind: KindError, Result: v.Result})
		return err
	}
	p.render(View{Status: StatusCopied, StatusKind: KindSuccess, Result: v.Result})
	return nil
}

// Clear discards the coordinator's job.
func (p *Popup) Clear(ctx context.Context) error {
	if err := p.expectAck(ctx, messages.ContextBackground, messages.ClearResult{}); err != nil {
		p.render(View{Status: StatusClearFailed, StatusKind: KindError})
		return err
	}
	p.render(View{Status: StatusCleared, StatusKind: KindSuccess})
	return nil
}

func (p *Popup) expectAck(ctx context.Context, to string, msg messages.Message) error {
	reply, err := p.Requester.Request(ctx, to, msg)
	if err != nil {
		return err
	}
	ack, ok := reply.(messages.Ack)
	if !ok {
		return fmt.Errorf("unexpected reply %s", reply.Type())
	}
	if !ack.Success {
		return errors.New(ack.Error)
	}
	return nil
}

func (p *Popup) fail(err error) error {
	p.render(View{Status: "Error: " + err.Error(), StatusKind: KindError})
	return err
}

// CopyText is the clipboard form of a successful job.
func CopyText(j job.Job) string {
	return "Extracted Text:\n" + j.ExtractedText + "\n\nAI Analysis:\n" + j.Analysis
}
