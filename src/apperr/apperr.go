package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class across context boundaries.
type Code string

const (
	CodeSelectionTooSmall  Code = "SELECTION_TOO_SMALL"
	CodeCaptureUnavailable Code = "CAPTURE_UNAVAILABLE"
	CodeOCRUnavailable     Code = "OCR_UNAVAILABLE"
	CodeOCREmpty           Code = "OCR_EMPTY"
	CodeOCRFailed          Code = "OCR_FAILED"
	CodeConfig             Code = "CONFIG_ERROR"
	CodeRemote             Code = "REMOTE_ERROR"
	CodeChannel            Code = "CHANNEL_ERROR"
)

// Error is a structured failure. Message is what the user sees; Stage names the
// pipeline step that caught it.
type Error struct {
	Code    Code
	Stage   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so sentinels like ErrConfig
// work with errors.Is through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrSelectionTooSmall  = &Error{Code: CodeSelectionTooSmall}
	ErrCaptureUnavailable = &Error{Code: CodeCaptureUnavailable}
	ErrOCRUnavailable     = &Error{Code: CodeOCRUnavailable}
	ErrOCREmpty           = &Error{Code: CodeOCREmpty}
	ErrOCRFailed          = &Error{Code: CodeOCRFailed}
	ErrConfig             = &Error{Code: CodeConfig}
	ErrRemote             = &Error{Code: CodeRemote}
	ErrChannel            = &Error{Code: CodeChannel}
)

// Factory functions

func SelectionTooSmall(width, height int) *Error {
	return &Error{
		Code:    CodeSelectionTooSmall,
		Message: fmt.Sprintf("selection %dx%d is smaller than the 10x10 minimum", width, height),
	}
}

func CaptureUnavailable(cause error) *Error {
	return &Error{Code: CodeCaptureUnavailable, Message: "screen capture unavailable", Cause: cause}
}

func OCRUnavailable(engine string, cause error) *Error {
	return &Error{Code: CodeOCRUnavailable, Message: fmt.Sprintf("OCR engine %s not available", engine), Cause: cause}
}

func OCREmpty() *Error {
	return &Error{Code: CodeOCREmpty, Message: "No text found in the selected area"}
}

func OCRFailed(cause error) *Error {
	return &Error{Code: CodeOCRFailed, Message: "OCR failed", Cause: cause}
}

func Config(msg string) *Error {
	return &Error{Code: CodeConfig, Message: msg}
}

func Remote(msg string, cause error) *Error {
	return &Error{Code: CodeRemote, Message: msg, Cause: cause}
}

func Channel(target string, cause error) *Error {
	return &Error{Code: CodeChannel, Message: fmt.Sprintf("message delivery to %s failed", target), Cause: cause}
}

// WithStage wraps err with the pipeline stage that caught it. The code of the
// innermost *Error is kept so callers can still classify the failure.
// Errors that already carry a stage are returned unchanged.
func WithStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	code := CodeRemote
	if errors.As(err, &ae) {
		if ae.Stage != "" {
			return err
		}
		code = ae.Code
	}
	return &Error{Code: code, Stage: stage, Message: stage + " failed", Cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
