package wsbridge

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"textlens/src/apperr"
	"textlens/src/messages"
)

// Client is a remote context. Requests and pushes addressed to it arrive on
// Envelopes; replying through the envelope sends the reply frame back.
type Client struct {
	Name string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan messages.Reply

	inbound   chan messages.MessageEnvelope
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the bridge at base (e.g. "ws://127.0.0.1:7313") as name.
func Dial(ctx context.Context, base, name string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge address %q: %w", base, err)
	}
	u.Path = Path
	q := u.Query()
	q.Set("context", name)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, apperr.Channel(messages.ContextBackground, err)
	}

	c := &Client{
		Name:    name,
		conn:    conn,
		pending: make(map[string]chan messages.Reply),
		inbound: make(chan messages.MessageEnvelope, queueSize),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Envelopes delivers traffic addressed to this context. It is closed when
// the connection drops.
func (c *Client) Envelopes() <-chan messages.MessageEnvelope { return c.inbound }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Request(ctx context.Context, to string, msg messages.Message) (messages.Message, error) {
	id := uuid.NewString()
	reply := make(chan messages.Reply, 1)

	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	f, err := messages.Encode(messages.FrameRequest, id, c.Name, to, msg)
	if err != nil {
		return nil, err
	}
	if err := c.write(f); err != nil {
		return nil, apperr.Channel(to, err)
	}

	select {
	case r := <-reply:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Message, nil
	case <-ctx.Done():
		return nil, apperr.Channel(to, ctx.Err())
	case <-c.done:
		return nil, apperr.Channel(to, errClosed)
	}
}

func (c *Client) Push(to string, msg messages.Message) error {
	f, err := messages.Encode(messages.FramePush, "", c.Name, to, msg)
	if err != nil {
		return err
	}
	if err := c.write(f); err != nil {
		return apperr.Channel(to, err)
	}
	return nil
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	c.shutdown()
	return c.conn.Close()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) write(f messages.Frame) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

func (c *Client) readLoop() {
	defer close(c.inbound)
	defer c.shutdown()

	for {
		var f messages.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("wsbridge: %s read: %v", c.Name, err)
			}
			return
		}

		if f.Kind == messages.FrameReply {
			c.resolve(f)
			continue
		}

		msg, err := f.Decode()
		if err != nil {
			log.Printf("wsbridge: %s: %v", c.Name, err)
			if f.Kind == messages.FrameRequest {
				_ = c.write(messages.Frame{Kind: messages.FrameReply, ID: f.ID, From: c.Name, To: f.From, Error: err.Error()})
			}
			continue
		}

		env := messages.MessageEnvelope{ID: f.ID, From: f.From, To: c.Name, Message: msg}
		if f.Kind == messages.FrameRequest {
			env.ExpectReply()
			go c.answer(env)
		}
		select {
		case c.inbound <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) resolve(f messages.Frame) {
	c.mu.Lock()
	reply, ok := c.pending[f.ID]
	c.mu.Unlock()
	if !ok {
		log.Printf("wsbridge: %s dropping late reply %s", c.Name, f.ID)
		return
	}

	var r messages.Reply
	if f.Error != "" {
		r.Err = remoteError(f)
	} else if r.Message, r.Err = f.Decode(); r.Err != nil {
		r.Err = apperr.Channel(f.From, r.Err)
	}
	select {
	case reply <- r:
	default:
	}
}

// answer waits for the local handler to respond and ships the reply.
func (c *Client) answer(env messages.MessageEnvelope) {
	var r messages.Reply
	select {
	case r = <-env.Reply:
	case <-c.done:
		return
	}

	f := messages.Frame{Kind: messages.FrameReply, ID: env.ID, From: c.Name, To: env.From}
	if r.Err != nil {
		f.Error = r.Err.Error()
		f.Code = string(apperr.CodeOf(r.Err))
	} else {
		var err error
		if f, err = messages.Encode(messages.FrameReply, env.ID, c.Name, env.From, r.Message); err != nil {
			f = messages.Frame{Kind: messages.FrameReply, ID: env.ID, From: c.Name, To: env.From, Error: err.Error()}
		}
	}
	if err := c.write(f); err != nil {
		log.Printf("wsbridge: %s reply %s: %v", c.Name, env.ID, err)
	}
}
