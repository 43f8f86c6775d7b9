package job

import (
	"errors"
	"testing"
	"time"
)

func TestTerminalRecordsAreExclusive(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	ok := Succeeded("a", "text", "analysis", now)
	if ok.Status() != StatusSucceeded || ok.Error != "" {
		t.Fatalf("unexpected success record %+v", ok)
	}
	if ok.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp should be UTC, got %v", ok.Timestamp.Location())
	}

	bad := Failed("b", errors.New("boom"), now)
	if bad.Status() != StatusFailed || bad.ExtractedText != "" || bad.Analysis != "" {
		t.Fatalf("unexpected failure record %+v", bad)
	}
	if bad.Error != "boom" {
		t.Errorf("Error = %q, want boom", bad.Error)
	}

	if Failed("c", nil, now).Error == "" {
		t.Error("nil error must still produce a message")
	}
}

func TestNewIDUnique(t *testing.T) {
	if NewID() == NewID() {
		t.Fatal("expected distinct IDs")
	}
}
