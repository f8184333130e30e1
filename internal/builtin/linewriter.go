package builtin

import (
	"bytes"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

type adder interface {
	Add(text string)
}

// lineWriter forwards complete lines written to it into a session, stripping
// ANSI escapes. Flush emits a trailing partial line.
type lineWriter struct {
	mu  sync.Mutex
	out adder
	buf bytes.Buffer
}

func newLineWriter(out adder) *lineWriter {
	return &lineWriter{out: out}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.emit(line[:i])
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(ansi.Strip(line), "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.out.Add(line)
}
