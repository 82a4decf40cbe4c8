package tui

import "sync"

// LogWriter adapts zerolog output into a line channel the Logs panel
// drains. Writes never block; lines are dropped when the panel is
// behind.
type LogWriter struct {
	mu sync.Mutex
	ch chan string
}

// NewLogWriter creates a writer buffering up to n lines.
func NewLogWriter(n int) *LogWriter {
	return &LogWriter{ch: make(chan string, n)}
}

// Lines returns the channel the TUI listens on.
func (w *LogWriter) Lines() <-chan string {
	return w.ch
}

func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case w.ch <- string(p):
	default:
	}
	return len(p), nil
}
