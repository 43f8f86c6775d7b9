package messages

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"textlens/src/job"
)

// Message is the base interface for all cross-context messages
type Message interface {
	Type() string
}

// MessageType constants. The strings are the wire names shared with remote contexts.
const (
	TypeStartSelection     = "startSelection"
	TypeSelectionMade      = "selectionMade"
	TypeGetResult          = "getResult"
	TypeClearResult        = "clearResult"
	TypeInitSelection      = "initSelection"
	TypePing               = "ping"
	TypePerformOCR         = "performOCR"
	TypeProcessingComplete = "processingComplete"
	TypeProcessingError    = "processingError"
	TypeAck                = "ack"
	TypeResult             = "result"
	TypeOCRResult          = "ocrResult"
	TypeDieNow             = "DIENOW"
)

// StartSelection - popup -> background, resets job state
type StartSelection struct{}

func (m StartSelection) Type() string { return TypeStartSelection }

// SelectionMade - page -> background, submits a captured region
type SelectionMade struct {
	ImageData []byte `json:"imageData"`
}

func (m SelectionMade) Type() string { return TypeSelectionMade }

// GetResult - popup -> background, pure read of job state
type GetResult struct{}

func (m GetResult) Type() string { return TypeGetResult }

// ClearResult - popup -> background
type ClearResult struct{}

func (m ClearResult) Type() string { return TypeClearResult }

// InitSelection - popup -> page, enters selection mode
type InitSelection struct{}

func (m InitSelection) Type() string { return TypeInitSelection }

// Ping - liveness probe sent before injecting a page context
type Ping struct{}

func (m Ping) Type() string { return TypePing }

// PerformOCR - background -> page, OCR runs where the engine lives
type PerformOCR struct {
	ImageData []byte `json:"imageData"`
}

func (m PerformOCR) Type() string { return TypePerformOCR }

// ProcessingComplete - background -> page push. ExtractedText and Analysis
// duplicate Result for receivers that only read the flat fields.
type ProcessingComplete struct {
	Result        job.Job `json:"result"`
	ExtractedText string  `json:"extractedText"`
	Analysis      string  `json:"analysis"`
}

func (m ProcessingComplete) Type() string { return TypeProcessingComplete }

// ProcessingError - background -> page push
type ProcessingError struct {
	Error string `json:"error"`
}

func (m ProcessingError) Type() string { return TypeProcessingError }

// Ack is the generic {success} reply.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (m Ack) Type() string { return TypeAck }

// ResultReply answers GetResult. Result is nil when no job exists.
type ResultReply struct {
	Result       *job.Job `json:"result"`
	IsProcessing bool     `json:"isProcessing"`
}

func (m ResultReply) Type() string { return TypeResult }

// OCRReply answers PerformOCR. Code carries the failure class on error.
type OCRReply struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (m OCRReply) Type() string { return TypeOCRResult }

// DIENOW - shutdown broadcast
type DIENOW struct{}

func (m DIENOW) Type() string { return TypeDieNow }

// Reply carries either the responder's message or a delivery error.
type Reply struct {
	Message Message
	Err     error
}

// MessageEnvelope wraps messages with metadata for routing. Reply is set only
// for requests and is buffered with capacity one.
type MessageEnvelope struct {
	ID      string
	From    string
	To      string
	Message Message
	Reply   chan Reply

	replied *atomic.Bool
}

// ExpectReply turns the envelope into a request with a fresh reply slot and
// returns the channel the reply arrives on.
func (e *MessageEnvelope) ExpectReply() chan Reply {
	e.Reply = make(chan Reply, 1)
	e.replied = new(atomic.Bool)
	return e.Reply
}

// IsRequest reports whether the sender waits for a reply.
func (e MessageEnvelope) IsRequest() bool { return e.Reply != nil }

// Respond delivers the reply for a request. Only the first reply is delivered;
// later ones and replies to pushes are dropped.
func (e MessageEnvelope) Respond(msg Message) bool {
	return e.deliver(Reply{Message: msg})
}

// Fail delivers a delivery error instead of a reply.
func (e MessageEnvelope) Fail(err error) bool {
	return e.deliver(Reply{Err: err})
}

func (e MessageEnvelope) deliver(r Reply) bool {
	if e.Reply == nil {
		return false
	}
	if e.replied != nil && !e.replied.CompareAndSwap(false, true) {
		log.Printf("messages: dropping duplicate reply for %s (%s -> %s)", e.ID, e.From, e.To)
		return false
	}
	select {
	case e.Reply <- r:
		return true
	default:
		log.Printf("messages: dropping duplicate reply for %s (%s -> %s)", e.ID, e.From, e.To)
		return false
	}
}

// Context names
const (
	ContextPopup      = "popup"
	ContextBackground = "background"
	pagePrefix        = "page:"
)

// PageContext names the page context with the given tab number.
func PageContext(tab int) string { return fmt.Sprintf("%s%d", pagePrefix, tab) }

// IsPageContext reports whether name addresses a page context.
func IsPageContext(name string) bool { return strings.HasPrefix(name, pagePrefix) }
