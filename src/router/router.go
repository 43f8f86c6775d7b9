package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"textlens/src/apperr"
	"textlens/src/messages"
)

const (
	sendTimeout      = 5 * time.Second
	broadcastTimeout = 1 * time.Second
)

var (
	errNotRegistered = errors.New("context not registered")
	errInactive      = errors.New("context not active")
	errQueueFull     = errors.New("timed out waiting for queue space")
	errShuttingDown  = errors.New("router is shutting down")
	errUnregistered  = errors.New("context unregistered before replying")
)

// ChannelInfo holds information about a context channel
type ChannelInfo struct {
	Channel   chan messages.MessageEnvelope
	ContextID string
	Active    bool
}

type pendingRequest struct {
	target string
	reply  chan messages.Reply
}

// Router handles message routing between contexts
type Router struct {
	channels    map[string]*ChannelInfo
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	logMessages bool

	pendingMu sync.Mutex
	pending   map[string]pendingRequest
}

// NewRouter creates a new message router
func NewRouter() *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		channels:    make(map[string]*ChannelInfo),
		ctx:         ctx,
		cancel:      cancel,
		logMessages: true,
		pending:     make(map[string]pendingRequest),
	}
}

// Register registers a context with the router
func (r *Router) Register(contextID string, bufferSize int) (<-chan messages.MessageEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[contextID]; exists {
		return nil, fmt.Errorf("context %s already registered", contextID)
	}

	ch := make(chan messages.MessageEnvelope, bufferSize)
	r.channels[contextID] = &ChannelInfo{
		Channel:   ch,
		ContextID: contextID,
		Active:    true,
	}

	log.Printf("Router: Registered context %s with buffer size %d", contextID, bufferSize)
	return ch, nil
}

// IsRegistered reports whether contextID currently has an active channel.
func (r *Router) IsRegistered(contextID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.channels[contextID]
	return ok && info.Active
}

// Unregister removes a context and fails every request still waiting on it.
func (r *Router) Unregister(contextID string) {
	r.mu.Lock()
	if info, exists := r.channels[contextID]; exists {
		info.Active = false
		close(info.Channel)
		delete(r.channels, contextID)
		log.Printf("Router: Unregistered context %s", contextID)
	}
	r.mu.Unlock()

	r.failPending(contextID)
}

func (r *Router) failPending(contextID string) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()

	for id, p := range r.pending {
		if p.target != contextID {
			continue
		}
		select {
		case p.reply <- messages.Reply{Err: apperr.Channel(contextID, errUnregistered)}:
		default:
		}
		delete(r.pending, id)
	}
}

// Send delivers a push. The error is a ChannelError when the addressee is
// missing, inactive, or its queue stays full past the send timeout.
func (r *Router) Send(envelope messages.MessageEnvelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		log.Printf("Router: %s -> %s: %s", envelope.From, envelope.To, envelope.Message.Type())
	}

	if envelope.To == "*" {
		return r.broadcastMessage(envelope)
	}

	info, exists := r.channels[envelope.To]
	if !exists {
		return apperr.Channel(envelope.To, errNotRegistered)
	}
	if !info.Active {
		return apperr.Channel(envelope.To, errInactive)
	}

	select {
	case info.Channel <- envelope:
		return nil
	case <-time.After(sendTimeout):
		return apperr.Channel(envelope.To, errQueueFull)
	case <-r.ctx.Done():
		return apperr.Channel(envelope.To, errShuttingDown)
	}
}

// Request sends envelope and waits for the addressee's reply. A correlation ID
// is assigned if the envelope has none.
func (r *Router) Request(ctx context.Context, envelope messages.MessageEnvelope) (messages.Message, error) {
	if envelope.ID == "" {
		envelope.ID = uuid.NewString()
	}
	reply := envelope.ExpectReply()

	r.pendingMu.Lock()
	r.pending[envelope.ID] = pendingRequest{target: envelope.To, reply: reply}
	r.pendingMu.Unlock()
	defer r.forget(envelope.ID)

	if err := r.Send(envelope); err != nil {
		return nil, err
	}

	select {
	case rep := <-reply:
		if rep.Err != nil {
			return nil, rep.Err
		}
		return rep.Message, nil
	case <-ctx.Done():
		return nil, apperr.Channel(envelope.To, ctx.Err())
	case <-r.ctx.Done():
		return nil, apperr.Channel(envelope.To, errShuttingDown)
	}
}

func (r *Router) forget(id string) {
	r.pendingMu.Lock()
	delete(r.pending, id)
	r.pendingMu.Unlock()
}

// Broadcast sends a message to all registered contexts
func (r *Router) Broadcast(envelope messages.MessageEnvelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		log.Printf("Router: Broadcasting %s from %s", envelope.Message.Type(), envelope.From)
	}

	_ = r.broadcastMessage(envelope)
}

func (r *Router) broadcastMessage(envelope messages.MessageEnvelope) error {
	var failed []string

	for contextID, info := range r.channels {
		if !info.Active || contextID == envelope.From {
			continue
		}

		envCopy := messages.MessageEnvelope{
			From:    envelope.From,
			To:      contextID,
			Message: envelope.Message,
		}

		select {
		case info.Channel <- envCopy:
		case <-time.After(broadcastTimeout):
			failed = append(failed, contextID)
		case <-r.ctx.Done():
			return apperr.Channel("*", errShuttingDown)
		}
	}

	if len(failed) > 0 {
		log.Printf("Router: Broadcast timed out for %v", failed)
	}
	return nil
}

// ActiveContexts returns the names of registered contexts
func (r *Router) ActiveContexts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []string
	for contextID, info := range r.channels {
		if info.Active {
			active = append(active, contextID)
		}
	}
	return active
}

// SetMessageLogging enables or disables message logging
func (r *Router) SetMessageLogging(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logMessages = enabled
}

// Shutdown closes all channels. Pending requests fail with a ChannelError.
func (r *Router) Shutdown() {
	log.Printf("Router: Shutting down...")

	r.cancel()

	r.mu.Lock()
	var names []string
	for contextID, info := range r.channels {
		if info.Active {
			info.Active = false
			close(info.Channel)
			names = append(names, contextID)
		}
	}
	r.channels = make(map[string]*ChannelInfo)
	r.mu.Unlock()

	for _, name := range names {
		r.failPending(name)
	}

	log.Printf("Router: Shutdown complete")
}

// DrainChannel drains all queued envelopes, failing any pending requests
func DrainChannel(ch <-chan messages.MessageEnvelope) int {
	count := 0
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return count
			}
			env.Fail(apperr.Channel(env.To, errShuttingDown))
			count++
		default:
			return count
		}
	}
}
