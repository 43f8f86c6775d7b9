// Package page is the per-screen context: it owns the selection machine,
// answers OCR requests from the coordinator and shows results in a callout.
package page

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"textlens/src/apperr"
	"textlens/src/messages"
	"textlens/src/notification"
	"textlens/src/overlay"
	"textlens/src/presenter"
	"textlens/src/router"
	"textlens/src/screenshot"
	"textlens/src/selection"
	"textlens/src/worker"
)

const queueSize = 16

var errBusy = errors.New("recognizer busy")

// TextRecognizer is what the page needs from the OCR adapter.
type TextRecognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Deps are the collaborators of a page.
type Deps struct {
	Overlay    overlay.Overlay
	Capturer   screenshot.Capturer
	Recognizer TextRecognizer
	Notifier   notification.Notifier
	// OnCallout, when set, draws result callouts.
	OnCallout func(presenter.CalloutView)
	// Workers bounds concurrent recognitions. Defaults to 1.
	Workers int
}

// Page implements process.Process under a "page:<n>" name.
type Page struct {
	name       string
	machine    *selection.Machine
	recognizer TextRecognizer
	callout    *presenter.Callout
	pool       *worker.Pool

	mu       sync.Mutex
	req      router.Requester
	lastRect *screenshot.Rect

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a page context.
func New(name string, d Deps) *Page {
	workers := d.Workers
	if workers <= 0 {
		workers = 1
	}
	p := &Page{
		name:       name,
		recognizer: d.Recognizer,
		callout:    &presenter.Callout{Notifier: d.Notifier, OnShow: d.OnCallout},
		pool:       worker.New(workers),
	}
	p.machine = selection.New(d.Overlay, d.Capturer, p, d.Notifier)
	return p
}

func (p *Page) Name() string { return p.name }

// Machine exposes the selection state machine to input drivers.
func (p *Page) Machine() *selection.Machine { return p.machine }

// Callout exposes the result callout.
func (p *Page) Callout() *presenter.Callout { return p.callout }

// Start registers the page on r and serves it.
func (p *Page) Start(ctx context.Context, r *router.Router) error {
	ch, err := r.Register(p.name, queueSize)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", p.name, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer r.Unregister(p.name)
		p.Serve(ctx, ch, router.Client{From: p.name, Router: r})
		router.DrainChannel(ch)
	}()
	return nil
}

// Stop ends the loop and waits for running recognitions.
func (p *Page) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.pool.Close()
	return nil
}

// Serve runs the page loop over envs until ctx is done, envs is closed, or
// DIENOW arrives. req is used to talk back to the coordinator; the router
// client and the websocket bridge client both fit.
func (p *Page) Serve(ctx context.Context, envs <-chan messages.MessageEnvelope, req router.Requester) {
	p.mu.Lock()
	p.req = req
	p.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envs:
			if !ok {
				return
			}
			if _, die := env.Message.(messages.DIENOW); die {
				log.Printf("Page %s: DIENOW received", p.name)
				return
			}
			p.handle(ctx, env)
		}
	}
}

func (p *Page) handle(ctx context.Context, env messages.MessageEnvelope) {
	switch msg := env.Message.(type) {
	case messages.Ping:
		env.Respond(messages.Ack{Success: true})

	case messages.InitSelection:
		if !p.machine.Begin() {
			log.Printf("Page %s: selection already active", p.name)
		}
		env.Respond(messages.Ack{Success: true})

	case messages.PerformOCR:
		p.recognize(ctx, env, msg.ImageData)

	case messages.ProcessingComplete:
		p.callout.ShowResult(p.anchor(), msg.ExtractedText, msg.Analysis)

	case messages.ProcessingError:
		p.callout.ShowError(msg.Error)

	default:
		log.Printf("Page %s: unknown message %s from %s", p.name, env.Message.Type(), env.From)
		env.Respond(messages.Ack{Success: false, Error: "unknown message type: " + env.Message.Type()})
	}
}

// recognize runs OCR off the loop so pings keep being answered. The request
// is always answered: a task the pool skips or that panics replies with an
// OCR failure.
func (p *Page) recognize(ctx context.Context, env messages.MessageEnvelope, image []byte) {
	done := make(chan struct{})
	ok := p.pool.TrySubmit(ctx, "ocr "+env.ID, func(ctx context.Context) {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Page %s: recognizer panicked: %v", p.name, r)
				env.Respond(ocrReply("", apperr.OCRFailed(fmt.Errorf("recognizer panicked: %v", r))))
			}
		}()
		text, err := p.recognizer.Recognize(ctx, image)
		env.Respond(ocrReply(text, err))
	})
	if !ok {
		env.Respond(ocrReply("", apperr.OCRFailed(errBusy)))
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case <-done:
		case <-ctx.Done():
			env.Respond(ocrReply("", apperr.OCRFailed(ctx.Err())))
		}
	}()
}

func ocrReply(text string, err error) messages.OCRReply {
	if err != nil {
		return messages.OCRReply{Success: false, Error: err.Error(), Code: string(apperr.CodeOf(err))}
	}
	return messages.OCRReply{Success: true, Text: text}
}

// anchor is the rectangle of the last submitted selection. Without one the
// callout goes to the top-left corner.
func (p *Page) anchor() screenshot.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRect == nil {
		return screenshot.Rect{}
	}
	return *p.lastRect
}

// Submit sends a captured region to the coordinator.
func (p *Page) Submit(ctx context.Context, rect screenshot.Rect, image []byte) error {
	p.mu.Lock()
	p.lastRect = &rect
	req := p.req
	p.mu.Unlock()
	if req == nil {
		return apperr.Channel(messages.ContextBackground, errors.New("page not started"))
	}

	reply, err := req.Request(ctx, messages.ContextBackground, messages.SelectionMade{ImageData: image})
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
