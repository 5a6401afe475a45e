package tui

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
)

// LogMsg appends one line to the log pane
type LogMsg struct {
	Line string
}

// LogWriter is the console sink of the run logger while the TUI owns the
// terminal. Complete lines are forwarded to the program; lines that arrive
// faster than the program drains them are dropped and counted.
type LogWriter struct {
	program Sender
	maxLine int

	mu     sync.Mutex
	buffer bytes.Buffer
	closed bool

	lines   chan string
	done    chan struct{}
	dropped atomic.Int64
}

// NewLogWriter creates a LogWriter that sends log lines into the program
func NewLogWriter(program Sender) *LogWriter {
	w := &LogWriter{
		program: program,
		maxLine: 2000,
		lines:   make(chan string, 200),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		for line := range w.lines {
			w.program.Send(LogMsg{Line: line})
		}
	}()
	return w
}

// Write implements io.Writer, splitting log output into lines
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}

	_, _ = w.buffer.Write(p)
	for {
		data := w.buffer.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		line := string(data[:idx])
		w.buffer.Next(idx + 1)
		w.sendLine(line)
	}
	return len(p), nil
}

// Dropped returns how many lines were discarded because the pane was busy
func (w *LogWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Close flushes a trailing partial line and stops forwarding. Writes after
// Close are discarded.
func (w *LogWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	if w.buffer.Len() > 0 {
		w.sendLine(w.buffer.String())
		w.buffer.Reset()
	}
	w.closed = true
	close(w.lines)
	w.mu.Unlock()

	<-w.done
	return nil
}

func (w *LogWriter) sendLine(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	if w.maxLine > 0 && len(line) > w.maxLine {
		line = line[:w.maxLine] + "..."
	}
	select {
	case w.lines <- line:
	default:
		w.dropped.Add(1)
	}
}
