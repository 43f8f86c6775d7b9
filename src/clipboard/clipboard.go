package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// Writer puts text on a clipboard.
type Writer interface {
	Write(text string) error
}

// System writes to the OS clipboard. Initialization happens on first use.
type System struct {
	once    sync.Once
	initErr error
	writeMu sync.Mutex
}

func (s *System) init() error {
	s.once.Do(func() {
		if err := clipboard.Init(); err != nil {
			s.initErr = fmt.Errorf("clipboard unavailable: %w", err)
		}
	})
	return s.initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func (s *System) Write(text string) error {
	if err := s.init(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
