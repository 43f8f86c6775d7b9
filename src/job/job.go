package job

import (
	"time"

	"github.com/google/uuid"
)

// Status of a job as seen by presenters.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is one selection's end-to-end processing record. A terminal job carries
// either Error or the success fields, never both.
type Job struct {
	ID            string    `json:"id"`
	ExtractedText string    `json:"extractedText,omitempty"`
	Analysis      string    `json:"analysis,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewID returns a fresh job identifier.
func NewID() string {
	return uuid.NewString()
}

// Succeeded builds the terminal success record.
func Succeeded(id, text, analysis string, at time.Time) Job {
	return Job{ID: id, ExtractedText: text, Analysis: analysis, Timestamp: at.UTC()}
}

// Failed builds the terminal error record.
func Failed(id string, err error, at time.Time) Job {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Job{ID: id, Error: msg, Timestamp: at.UTC()}
}

// Status reports whether the job succeeded or failed.
func (j Job) Status() Status {
	switch {
	case j.Error != "":
		return StatusFailed
	case j.ExtractedText != "" || j.Analysis != "":
		return StatusSucceeded
	default:
		return StatusPending
	}
}
