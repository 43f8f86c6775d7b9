// Package wsbridge carries router traffic to contexts running in another
// process. Each websocket connection stands in for one named context.
package wsbridge

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"textlens/src/apperr"
	"textlens/src/messages"
	"textlens/src/router"
)

const (
	// Path is where the bridge listens. The context name is the "context"
	// query parameter.
	Path      = "/ws"
	writeWait = 5 * time.Second
	queueSize = 16
)

var errClosed = errors.New("bridge connection closed")

// Server registers remote contexts on a router. Handshakes without an Origin
// header (CLI clients) are accepted; browser handshakes only from an origin
// in AllowedOrigins.
type Server struct {
	Router         *router.Router
	AllowedOrigins []string

	upgrader websocket.Upgrader
}

// NewServer returns a bridge for r.
func NewServer(r *router.Router, allowedOrigins ...string) *Server {
	s := &Server{Router: r, AllowedOrigins: allowedOrigins}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 65536,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	log.Printf("wsbridge: rejected origin %q", origin)
	return false
}

// Handler returns a mux serving the bridge at Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	name := r.URL.Query().Get("context")
	if name == "" || name == messages.ContextBackground {
		http.Error(w, "invalid context name", http.StatusBadRequest)
		return
	}
	if s.Router.IsRegistered(name) {
		http.Error(w, "context already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsbridge: upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch, err := s.Router.Register(name, queueSize)
	if err != nil {
		log.Printf("wsbridge: %v", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		return
	}
	log.Printf("wsbridge: %s connected from %s", name, r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	p := &peer{name: name, conn: conn, pending: make(map[string]messages.MessageEnvelope)}

	go s.forward(p, ch)
	s.receive(ctx, p)

	cancel()
	p.failAll()
	s.Router.Unregister(name)
	log.Printf("wsbridge: %s disconnected", name)
}

// forward writes everything routed to the remote context onto the socket.
func (s *Server) forward(p *peer, ch <-chan messages.MessageEnvelope) {
	for env := range ch {
		kind := messages.FramePush
		if env.IsRequest() {
			kind = messages.FrameRequest
			p.track(env)
		}
		f, err := messages.Encode(kind, env.ID, env.From, env.To, env.Message)
		if err == nil {
			err = p.write(f)
		}
		if err != nil {
			log.Printf("wsbridge: forward %s to %s failed: %v", env.Message.Type(), p.name, err)
			if env.IsRequest() {
				p.take(env.ID)
				env.Fail(apperr.Channel(p.name, err))
			}
		}
	}
}

// receive reads frames until the connection drops.
func (s *Server) receive(ctx context.Context, p *peer) {
	for {
		var f messages.Frame
		if err := p.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("wsbridge: read from %s: %v", p.name, err)
			}
			return
		}

		switch f.Kind {
		case messages.FrameReply:
			env, ok := p.take(f.ID)
			if !ok {
				log.Printf("wsbridge: dropping reply %s from %s, nobody waiting", f.ID, p.name)
				continue
			}
			if f.Error != "" {
				env.Fail(remoteError(f))
				continue
			}
			msg, err := f.Decode()
			if err != nil {
				env.Fail(apperr.Channel(p.name, err))
				continue
			}
			env.Respond(msg)

		case messages.FrameRequest:
			go s.relayRequest(ctx, p, f)

		case messages.FramePush:
			msg, err := f.Decode()
			if err != nil {
				log.Printf("wsbridge: bad push from %s: %v", p.name, err)
				continue
			}
			if err := s.Router.Send(messages.MessageEnvelope{From: p.name, To: f.To, Message: msg}); err != nil {
				log.Printf("wsbridge: push from %s: %v", p.name, err)
			}

		default:
			log.Printf("wsbridge: unknown frame kind %q from %s", f.Kind, p.name)
		}
	}
}

func (s *Server) relayRequest(ctx context.Context, p *peer, f messages.Frame) {
	reply := messages.Frame{Kind: messages.FrameReply, ID: f.ID, From: f.To, To: p.name}

	msg, err := f.Decode()
	var answer messages.Message
	if err == nil {
		answer, err = s.Router.Request(ctx, messages.MessageEnvelope{From: p.name, To: f.To, Message: msg})
	}
	if err == nil {
		reply, err = messages.Encode(messages.FrameReply, f.ID, f.To, p.name, answer)
	}
	if err != nil {
		reply.Error = err.Error()
		reply.Code = string(apperr.CodeOf(err))
	}

	if err := p.write(reply); err != nil {
		log.Printf("wsbridge: reply to %s failed: %v", p.name, err)
	}
}

// peer is one connected remote context.
type peer struct {
	name string
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]messages.MessageEnvelope
}

func (p *peer) write(f messages.Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(f)
}

func (p *peer) track(env messages.MessageEnvelope) {
	p.mu.Lock()
	p.pending[env.ID] = env
	p.mu.Unlock()
}

func (p *peer) take(id string) (messages.MessageEnvelope, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	env, ok := p.pending[id]
	delete(p.pending, id)
	return env, ok
}

func (p *peer) failAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, env := range p.pending {
		env.Fail(apperr.Channel(p.name, errClosed))
		delete(p.pending, id)
	}
}

// remoteError rebuilds an error that crossed the wire.
func remoteError(f messages.Frame) error {
	code := apperr.Code(f.Code)
	if code == "" {
		code = apperr.CodeChannel
	}
	return &apperr.Error{Code: code, Message: f.Error}
}
