package messages

import (
	"encoding/json"
	"fmt"
)

// FrameKind distinguishes requests, pushes and replies on the wire.
type FrameKind string

const (
	FrameRequest FrameKind = "request"
	FramePush    FrameKind = "push"
	FrameReply   FrameKind = "reply"
)

// Frame is the JSON form of an envelope used by out-of-process contexts.
type Frame struct {
	Kind    FrameKind       `json:"kind"`
	ID      string          `json:"id,omitempty"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Type    string          `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

var registry = map[string]func() Message{
	TypeStartSelection:     func() Message { return &StartSelection{} },
	TypeSelectionMade:      func() Message { return &SelectionMade{} },
	TypeGetResult:          func() Message { return &GetResult{} },
	TypeClearResult:        func() Message { return &ClearResult{} },
	TypeInitSelection:      func() Message { return &InitSelection{} },
	TypePing:               func() Message { return &Ping{} },
	TypePerformOCR:         func() Message { return &PerformOCR{} },
	TypeProcessingComplete: func() Message { return &ProcessingComplete{} },
	TypeProcessingError:    func() Message { return &ProcessingError{} },
	TypeAck:                func() Message { return &Ack{} },
	TypeResult:             func() Message { return &ResultReply{} },
	TypeOCRResult:          func() Message { return &OCRReply{} },
	TypeDieNow:             func() Message { return &DIENOW{} },
}

// Encode builds a frame for msg. msg may be nil for error replies.
func Encode(kind FrameKind, id, from, to string, msg Message) (Frame, error) {
	f := Frame{Kind: kind, ID: id, From: from, To: to}
	if msg == nil {
		return f, nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s: %w", msg.Type(), err)
	}
	f.Type = msg.Type()
	f.Payload = payload
	return f, nil
}

// Decode returns the message carried by the frame as a value type
// (e.g. messages.Ping, not *messages.Ping).
func (f Frame) Decode() (Message, error) {
	newMsg, ok := registry[f.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q", f.Type)
	}
	ptr := newMsg()
	if len(f.Payload) > 0 && string(f.Payload) != "null" {
		if err := json.Unmarshal(f.Payload, ptr); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.Type, err)
		}
	}
	return deref(ptr), nil
}

func deref(m Message) Message {
	switch v := m.(type) {
	case *StartSelection:
		return *v
	case *SelectionMade:
		return *v
	case *GetResult:
		return *v
	case *ClearResult:
		return *v
	case *InitSelection:
		return *v
	case *Ping:
		return *v
	case *PerformOCR:
		return *v
	case *ProcessingComplete:
		return *v
	case *ProcessingError:
		return *v
	case *Ack:
		return *v
	case *ResultReply:
		return *v
	case *OCRReply:
		return *v
	case *DIENOW:
		return *v
	default:
		return m
	}
}
