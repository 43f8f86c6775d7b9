// Package coordinator is the background context. It owns the current job and
// the processing flag and runs the OCR then analysis pipeline for each
// submitted selection.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"textlens/src/apperr"
	"textlens/src/job"
	"textlens/src/logutil"
	"textlens/src/messages"
	"textlens/src/router"
)

// Analyzer turns extracted text into an analysis.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}

// Coordinator implements process.Process under the name "background".
type Coordinator struct {
	analyzer Analyzer
	now      func() time.Time

	mu         sync.Mutex
	current    *job.Job
	processing bool
	generation uint64

	router *router.Router
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator that analyzes text with a.
func New(a Analyzer, opts ...Option) *Coordinator {
	c := &Coordinator{analyzer: a, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Name() string { return messages.ContextBackground }

// Start registers the background context and launches its loop.
func (c *Coordinator) Start(ctx context.Context, r *router.Router) error {
	ch, err := r.Register(messages.ContextBackground, 32)
	if err != nil {
		return fmt.Errorf("failed to register coordinator: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.router = r
	c.cancel = cancel

	c.wg.Add(1)
	go c.loop(ctx, ch)
	return nil
}

// Stop cancels running pipelines and waits for them to exit.
func (c *Coordinator) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *Coordinator) loop(ctx context.Context, ch <-chan messages.MessageEnvelope) {
	defer c.wg.Done()
	defer c.router.Unregister(messages.ContextBackground)
	defer func() {
		if n := router.DrainChannel(ch); n > 0 {
			log.Printf("Coordinator: failed %d queued messages on exit", n)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if _, die := env.Message.(messages.DIENOW); die {
				log.Printf("Coordinator: DIENOW received")
				return
			}
			c.handle(ctx, env)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, env messages.MessageEnvelope) {
	switch msg := env.Message.(type) {
	case messages.StartSelection:
		c.reset()
		env.Respond(messages.Ack{Success: true})

	case messages.SelectionMade:
		gen, id := c.begin()
		env.Respond(messages.Ack{Success: true})
		c.wg.Add(1)
		go c.process(ctx, gen, id, env.From, msg.ImageData)

	case messages.GetResult:
		env.Respond(c.snapshot())

	case messages.ClearResult:
		c.reset()
		env.Respond(messages.Ack{Success: true})

	case messages.Ping:
		env.Respond(messages.Ack{Success: true})

	default:
		log.Printf("Coordinator: unknown message %s from %s", env.Message.Type(), env.From)
		env.Respond(messages.Ack{Success: false, Error: "unknown message type: " + env.Message.Type()})
	}
}

// reset clears the job and bumps the generation so in-flight pipelines
// cannot write into the cleared state.
func (c *Coordinator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.processing = false
	c.generation++
}

func (c *Coordinator) begin() (uint64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.processing = true
	return c.generation, job.NewID()
}

func (c *Coordinator) snapshot() messages.ResultReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply := messages.ResultReply{IsProcessing: c.processing}
	if c.current != nil {
		j := *c.current
		reply.Result = &j
	}
	return reply
}

// finish stores the terminal job if gen is still current.
func (c *Coordinator) finish(gen uint64, j job.Job) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.current = &j
	c.processing = false
	return true
}

func (c *Coordinator) process(ctx context.Context, gen uint64, id, page string, image []byte) {
	defer c.wg.Done()

	text, analysis, err := c.run(ctx, id, page, image)

	var result job.Job
	if err != nil {
		log.Printf("Coordinator: job %s failed: %v", id, err)
		result = job.Failed(id, err, c.now())
	} else {
		result = job.Succeeded(id, text, analysis, c.now())
	}

	if !c.finish(gen, result) {
		log.Printf("Coordinator: job %s superseded, result discarded", id)
	}

	var push messages.Message
	if err != nil {
		push = messages.ProcessingError{Error: result.Error}
	} else {
		push = messages.ProcessingComplete{Result: result, ExtractedText: text, Analysis: analysis}
	}
	if err := c.router.Send(messages.MessageEnvelope{From: messages.ContextBackground, To: page, Message: push}); err != nil {
		log.Printf("Coordinator: could not notify %s: %v", page, err)
	}
}

func (c *Coordinator) run(ctx context.Context, id, page string, image []byte) (string, string, error) {
	text, err := c.recognize(ctx, page, image)
	if err != nil {
		return "", "", err
	}
	log.Printf("Coordinator: job %s recognized %d chars: %s", id, len(text), logutil.Sanitize(text))
	if strings.TrimSpace(text) == "" {
		return "", "", apperr.OCREmpty()
	}

	analysis, err := c.analyzer.Analyze(ctx, text)
	if err != nil {
		return "", "", apperr.WithStage("analysis", err)
	}
	return text, analysis, nil
}

func (c *Coordinator) recognize(ctx context.Context, page string, image []byte) (string, error) {
	reply, err := c.router.Request(ctx, messages.MessageEnvelope{
		From:    messages.ContextBackground,
		To:      page,
		Message: messages.PerformOCR{ImageData: image},
	})
	if err != nil {
		return "", apperr.WithStage("OCR", err)
	}

	ocr, ok := reply.(messages.OCRReply)
	if !ok {
		return "", apperr.WithStage("OCR", fmt.Errorf("unexpected reply %s", reply.Type()))
	}
	if !ocr.Success {
		code := apperr.Code(ocr.Code)
		if code == "" {
			code = apperr.CodeOCRFailed
		}
		msg := ocr.Error
		if msg == "" {
			msg = "OCR failed"
		}
		return "", &apperr.Error{Code: code, Stage: "OCR", Message: msg}
	}
	return ocr.Text, nil
}
