// Package session holds per-tab state: the output buffer, working directory,
// mode and the optional shell bridge attached to it.
//
// A Session is safe for concurrent use. A single mutex guards the buffer, the
// mode, the bridge reference and the working directory; it is never held
// across blocking I/O.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/errs"
)

// DefaultStopTimeout bounds how long a bridge teardown waits for the shell.
const DefaultStopTimeout = time.Second

// ErrNoShell is returned by WriteInput when no bridge accepts input.
var ErrNoShell = errors.New("no shell to send input to")

type Session struct {
	id string

	mu      sync.Mutex
	name    string
	cwd     string
	mode    Mode
	buf     []string
	scroll  int
	history []string
	colors  map[string]string
	bridge  *Bridge

	workers     sync.WaitGroup
	log         *zap.Logger
	stopTimeout time.Duration
	resolve     func(Mode) (Shell, error)
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithStopTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithShellResolver replaces the platform shell lookup used by SetMode.
func WithShellResolver(fn func(Mode) (Shell, error)) Option {
	return func(s *Session) { s.resolve = fn }
}

// WithColors seeds the color overrides.
func WithColors(colors map[string]string) Option {
	return func(s *Session) {
		for k, v := range colors {
			s.colors[k] = v
		}
	}
}

// New creates an Interactive session rooted at cwd, or at the process working
// directory when cwd is empty.
func New(name, cwd string, opts ...Option) *Session {
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(cwd); err == nil {
		cwd = abs
	}
	s := &Session{
		id:          uuid.NewString(),
		name:        name,
		cwd:         cwd,
		colors:      make(map[string]string),
		log:         zap.NewNop(),
		stopTimeout: DefaultStopTimeout,
		resolve:     ResolveShell,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) Rename(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Add appends text to the buffer, one entry per line, in a single critical
// section. A trailing line break does not produce an empty line.
func (s *Session) Add(text string) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return
	}
	s.mu.Lock()
	s.buf = append(s.buf, lines...)
	s.mu.Unlock()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func (s *Session) Clear() {
	s.mu.Lock()
	s.buf = nil
	s.scroll = 0
	s.mu.Unlock()
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Lines returns a snapshot of the buffer.
func (s *Session) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.buf...)
}

// TakeFrom removes and returns every line appended after the first n.
func (s *Session) TakeFrom(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n >= len(s.buf) {
		return nil
	}
	taken := append([]string(nil), s.buf[n:]...)
	s.buf = s.buf[:n]
	return taken
}

// Record appends a non-blank line to the command history.
func (s *Session) Record(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	s.mu.Lock()
	s.history = append(s.history, line)
	s.mu.Unlock()
}

func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

func (s *Session) SetColor(target, color string) {
	s.mu.Lock()
	s.colors[target] = color
	s.mu.Unlock()
}

func (s *Session) Colors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.colors))
	for k, v := range s.colors {
		out[k] = v
	}
	return out
}

// ScrollBy moves the scroll offset by delta lines, clamped to [0, overflow].
// The offset counts lines hidden below the bottom of the pane.
func (s *Session) ScrollBy(delta, overflow int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scroll = max(0, min(s.scroll+delta, max(overflow, 0)))
	return s.scroll
}

func (s *Session) Scroll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scroll
}

// Cd changes the working directory. Relative paths resolve against the
// current one and a leading ~ expands to the home directory. On failure an
// error line is appended and the directory is left unchanged.
func (s *Session) Cd(path string) error {
	target := s.Resolve(path)
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		s.Add("cd: no such directory: " + path)
		return errs.NotFound("cd", path)
	}
	s.mu.Lock()
	s.cwd = target
	s.mu.Unlock()
	return nil
}

// Resolve turns path into an absolute, cleaned path relative to the
// session's working directory.
func (s *Session) Resolve(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.Cwd(), path)
}

// SetMode tears down the current bridge, if any, and switches mode. Any mode
// other than Interactive spawns a new bridge. Selecting Interactive while
// already Interactive with no bridge is a no-op. A spawn failure reverts the
// session to Interactive and appends the cause.
func (s *Session) SetMode(m Mode) error {
	s.mu.Lock()
	old := s.bridge
	if old == nil && m == Interactive && s.mode == Interactive {
		s.mu.Unlock()
		return nil
	}
	s.bridge = nil
	s.mode = m
	cwd := s.cwd
	s.mu.Unlock()

	if old != nil {
		old.Stop(s.stopTimeout)
	}
	if m == Interactive {
		return nil
	}

	sh, err := s.resolve(m)
	var b *Bridge
	if err == nil {
		b, err = startBridge(sh, cwd, s.log.Named("bridge"))
	}
	if err != nil {
		s.mu.Lock()
		s.mode = Interactive
		s.mu.Unlock()
		s.Add(fmt.Sprintf("Failed to spawn shell '%s': %v", sh.Path, err))
		s.log.Warn("spawn shell", zap.String("session", s.id), zap.String("shell", sh.Path), zap.Error(err))
		return errs.BridgeFault("tab mode "+m.String(), err)
	}

	s.mu.Lock()
	s.bridge = b
	s.mu.Unlock()
	s.log.Info("shell attached", zap.String("session", s.id), zap.String("mode", m.String()), zap.Int("pid", b.PID()))
	b.run(s.Add, s.bridgeExited)
	return nil
}

// bridgeExited is the waiter's callback. Only the bridge still attached may
// revert the mode, so a bridge torn down by SetMode exits silently.
func (s *Session) bridgeExited(b *Bridge, code int) {
	s.mu.Lock()
	if s.bridge != b {
		s.mu.Unlock()
		return
	}
	s.bridge = nil
	s.mode = Interactive
	s.buf = append(s.buf, fmt.Sprintf("Exited (code %d); reverting to Poly.", code))
	s.mu.Unlock()
	s.log.Info("shell exited", zap.String("session", s.id), zap.Int("code", code))
}

// Bridge returns the attached bridge, or nil.
func (s *Session) Bridge() *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge
}

// WriteInput forwards line to the attached shell.
func (s *Session) WriteInput(line string) error {
	b := s.Bridge()
	if b == nil || !b.InputOpen() {
		s.Add("No shell to send input to.")
		return ErrNoShell
	}
	if err := b.Write(line); err != nil {
		s.Add("Error writing to shell stdin: " + err.Error())
		return err
	}
	return nil
}

// Go runs fn on a tracked background worker.
func (s *Session) Go(fn func()) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn()
	}()
}

// Wait blocks until every worker started with Go has returned.
func (s *Session) Wait() {
	s.workers.Wait()
}

// Stop detaches and stops the bridge, waiting at most the stop timeout.
func (s *Session) Stop() {
	s.mu.Lock()
	b := s.bridge
	s.bridge = nil
	s.mode = Interactive
	s.mu.Unlock()
	if b != nil {
		b.Stop(s.stopTimeout)
	}
}
