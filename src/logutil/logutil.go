// Package logutil configures the process log and scrubs values before they
// reach it.
package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

const (
	logFileName = "textlens.log"
	// A job writes a handful of lines with an 80 rune text preview, so a few
	// MB holds thousands of jobs.
	defaultMaxBytes = 4 << 20
	defaultArchives = 2
	previewRunes    = 80
)

// Setup points the standard logger at a rotating file in the user cache
// directory, or discards output when file logging is off. The resident keeps
// its terminal for rendered results, so log lines never go to stdout.
func Setup(enableFileLogging bool) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !enableFileLogging {
		log.SetOutput(io.Discard)
		return
	}
	w, err := Open(DefaultDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "textlens: file logging disabled: %v\n", err)
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(w)
}

// DefaultDir is <UserCacheDir>/textlens, or the working directory when the
// cache directory is unknown.
func DefaultDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "textlens")
}

// Rotator is an io.Writer over dir/textlens.log that moves the file to .1,
// .2, ... once a write would push it past MaxBytes.
type Rotator struct {
	Dir      string
	MaxBytes int64
	Archives int

	mu   sync.Mutex
	f    *os.File
	size int64
}

// Open creates dir and opens the log file in it for appending.
func Open(dir string) (*Rotator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r := &Rotator{Dir: dir, MaxBytes: defaultMaxBytes, Archives: defaultArchives}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rotator) Path() string { return filepath.Join(r.Dir, logFileName) }

func (r *Rotator) open() error {
	f, err := os.OpenFile(r.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.f, r.size = f, st.Size()
	return nil
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size > 0 && r.size+int64(len(p)) > r.MaxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *Rotator) rotate() error {
	_ = r.f.Close()
	_ = os.Remove(r.archive(r.Archives))
	for i := r.Archives - 1; i >= 1; i-- {
		_ = os.Rename(r.archive(i), r.archive(i+1))
	}
	if r.Archives > 0 {
		_ = os.Rename(r.Path(), r.archive(1))
	} else {
		_ = os.Remove(r.Path())
	}
	return r.open()
}

func (r *Rotator) archive(n int) string { return fmt.Sprintf("%s.%d", r.Path(), n) }

// Close closes the current file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}

// Sanitize makes recognized text safe for a single log line: control
// characters become spaces and the result is cut to a short preview.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > previewRunes {
		return string(r[:previewRunes]) + "..."
	}
	return s
}
