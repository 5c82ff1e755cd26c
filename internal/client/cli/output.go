package cli

import (
	"io"
	"sync"
)

// lockedWriter serializes writes to the terminal. Session callbacks such
// as the expired-session notice may run on the background verify
// goroutine while a command is printing.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) *lockedWriter {
	if lw, ok := w.(*lockedWriter); ok {
		return lw
	}
	return &lockedWriter{w: w}
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
