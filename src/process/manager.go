package process

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"textlens/src/messages"
	"textlens/src/router"
)

// Process is one execution context: popup, background or a page.
type Process interface {
	// Start registers the context with the router and launches its loop.
	// It returns once the context is ready to receive messages.
	Start(ctx context.Context, r *router.Router) error

	// Stop gracefully shuts down the context
	Stop() error

	// Name returns the router name of the context
	Name() string
}

// State represents the lifecycle state of a context
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Info holds information about a managed context
type Info struct {
	Process   Process
	State     State
	StartTime time.Time
	LastError error
	cancel    context.CancelFunc
}

// Manager owns the router and the lifecycle of every context.
type Manager struct {
	processes map[string]*Info
	router    *router.Router
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager creates a manager with its own router
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		processes: make(map[string]*Info),
		router:    router.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Router returns the message router
func (m *Manager) Router() *router.Router {
	return m.router
}

// Start registers p and starts it synchronously. Starting a name that is
// already running is an error.
func (m *Manager) Start(p Process) (err error) {
	name := p.Name()

	m.mu.Lock()
	if info, exists := m.processes[name]; exists && info.State == StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("process %s already running", name)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	info := &Info{Process: p, State: StateStarting, StartTime: time.Now(), cancel: cancel}
	m.processes[name] = info
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Printf("Process %s panicked: %v", name, r)
		}
		m.mu.Lock()
		if err != nil {
			info.State = StateCrashed
			info.LastError = err
			cancel()
		} else {
			info.State = StateRunning
		}
		m.mu.Unlock()
	}()

	log.Printf("Starting process %s", name)
	if err = p.Start(ctx, m.router); err != nil {
		log.Printf("Process %s failed to start: %v", name, err)
		return err
	}
	log.Printf("Process %s started", name)
	return nil
}

// IsRunning reports whether the named context is running.
func (m *Manager) IsRunning(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.processes[name]
	return ok && info.State == StateRunning
}

// Stop stops a specific context
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	info, exists := m.processes[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("process %s not found", name)
	}
	if info.State != StateRunning {
		m.mu.Unlock()
		return nil
	}
	info.State = StateStopping
	m.mu.Unlock()

	log.Printf("Stopping process %s", name)
	info.cancel()
	if err := info.Process.Stop(); err != nil {
		log.Printf("Error stopping process %s: %v", name, err)
	}

	m.mu.Lock()
	info.State = StateStopped
	m.mu.Unlock()

	log.Printf("Process %s stopped", name)
	return nil
}

// StopAll broadcasts DIENOW, then stops every context and the router.
func (m *Manager) StopAll() {
	log.Printf("Stopping all processes...")

	m.router.Broadcast(messages.MessageEnvelope{
		From:    "manager",
		To:      "*",
		Message: messages.DIENOW{},
	})

	m.mu.RLock()
	names := make([]string, 0, len(m.processes))
	for name := range m.processes {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		_ = m.Stop(name)
	}

	m.cancel()
	m.router.Shutdown()
	log.Printf("All processes stopped")
}

// Status returns the state of all contexts
func (m *Manager) Status() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]State, len(m.processes))
	for name, info := range m.processes {
		status[name] = info.State
	}
	return status
}

// Injector starts a page context on demand. It is what the readiness
// handshake calls when a page does not answer its liveness probe.
type Injector struct {
	Manager *Manager
	New     func(name string) Process
	// Started, when set, is called with each context that started cleanly.
	Started func(Process)
}

// Inject starts a fresh context under name unless one is already running.
func (i Injector) Inject(ctx context.Context, name string) error {
	if i.Manager.IsRunning(name) && i.Manager.Router().IsRegistered(name) {
		return nil
	}
	if i.Manager.IsRunning(name) {
		// Registered process lost its channel, restart it.
		_ = i.Manager.Stop(name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := i.New(name)
	if err := i.Manager.Start(p); err != nil {
		return err
	}
	if i.Started != nil {
		i.Started(p)
	}
	return nil
}
