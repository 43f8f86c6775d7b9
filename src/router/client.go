package router

import (
	"context"

	"textlens/src/messages"
)

// Requester is the request/push surface a context needs from the transport.
// Router-backed clients and the websocket bridge client both implement it.
type Requester interface {
	Request(ctx context.Context, to string, msg messages.Message) (messages.Message, error)
	Push(to string, msg messages.Message) error
}

// Client sends on behalf of one named context.
type Client struct {
	From   string
	Router *Router
}

func (c Client) Request(ctx context.Context, to string, msg messages.Message) (messages.Message, error) {
	return c.Router.Request(ctx, messages.MessageEnvelope{From: c.From, To: to, Message: msg})
}

func (c Client) Push(to string, msg messages.Message) error {
	return c.Router.Send(messages.MessageEnvelope{From: c.From, To: to, Message: msg})
}
