package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
)

// State is the lifecycle stage of a Bridge.
type State int32

const (
	StateSpawning State = iota
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

var errInputClosed = errors.New("shell input closed")

// maxLine bounds a single line read from the shell.
const maxLine = 1 << 20

// drainGrace is how long the waiter lets the readers catch up after the
// shell exits. A background job of the shell may keep the pipes open far
// longer; its output is still delivered, just after the exit line.
const drainGrace = 200 * time.Millisecond

// Bridge streams one native shell process into a session. Output lines from
// both streams travel through a channel to a single pump goroutine, which is
// the only writer into the session buffer on the bridge's behalf.
type Bridge struct {
	shell Shell
	cmd   *exec.Cmd
	log   *zap.Logger

	stdout *os.File
	stderr *os.File

	writeMu sync.Mutex
	stdin   io.WriteCloser

	state    atomic.Int32
	exitCode atomic.Int32
	lines    chan string
	done     chan struct{}
}

// startBridge spawns the shell in dir. The returned bridge is Running but its
// readers are not started until run.
func startBridge(sh Shell, dir string, log *zap.Logger) (*Bridge, error) {
	if sh.Path == "" {
		return nil, errors.New("no shell found")
	}
	cmd := exec.Command(sh.Path, sh.Args...)
	cmd.Dir = dir
	b := &Bridge{
		shell: sh,
		cmd:   cmd,
		log:   log,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}
	b.exitCode.Store(-1)

	var err error
	if b.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	// The output pipes are plain os.Pipe pairs rather than cmd.StdoutPipe so
	// cmd.Wait returns when the shell exits, not when every process holding
	// the write ends has gone.
	var outW, errW *os.File
	if b.stdout, outW, err = os.Pipe(); err != nil {
		_ = b.stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if b.stderr, errW, err = os.Pipe(); err != nil {
		_ = b.stdin.Close()
		closeAll(b.stdout, outW)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout, cmd.Stderr = outW, errW
	err = cmd.Start()
	closeAll(outW, errW)
	if err != nil {
		_ = b.stdin.Close()
		closeAll(b.stdout, b.stderr)
		return nil, err
	}
	b.state.Store(int32(StateRunning))
	return b, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// run starts both readers, the pump and the waiter. sink receives every
// non-empty output line; onExit fires once when the shell has exited and its
// output was delivered, or after drainGrace if something else still holds the
// pipes.
func (b *Bridge) run(sink func(string), onExit func(*Bridge, int)) {
	var readers sync.WaitGroup
	readers.Add(2)
	go b.read(b.stdout, &readers)
	go b.read(b.stderr, &readers)

	pumped := make(chan struct{})
	go func() {
		readers.Wait()
		closeAll(b.stdout, b.stderr)
		close(b.lines)
	}()
	go func() {
		defer close(pumped)
		for line := range b.lines {
			sink(line)
		}
	}()

	go func() {
		code := exitCode(b.cmd.Wait())
		select {
		case <-pumped:
		case <-time.After(drainGrace):
			b.log.Debug("output still open after exit", zap.String("shell", b.shell.Path))
		}

		b.exitCode.Store(int32(code))
		b.state.Store(int32(StateExited))
		b.closeInput()
		b.log.Debug("waiter done", zap.String("shell", b.shell.Path), zap.Int("code", code))
		onExit(b, code)
		close(b.done)
	}()
}

func (b *Bridge) read(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := strings.TrimRight(ansi.Strip(sc.Text()), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.lines <- line
	}
	if err := sc.Err(); err != nil {
		b.log.Debug("reader stopped", zap.Error(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (b *Bridge) State() State {
	return State(b.state.Load())
}

// ExitCode is -1 until the shell has exited.
func (b *Bridge) ExitCode() int {
	return int(b.exitCode.Load())
}

func (b *Bridge) PID() int {
	if b.cmd.Process == nil {
		return -1
	}
	return b.cmd.Process.Pid
}

// Done is closed once the waiter has finished.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) InputOpen() bool {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.stdin != nil
}

// Write sends line followed by a newline. Concurrent writers never interleave.
func (b *Bridge) Write(line string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.stdin == nil {
		return errInputClosed
	}
	_, err := io.WriteString(b.stdin, line+"\n")
	return err
}

func (b *Bridge) closeInput() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.stdin != nil {
		_ = b.stdin.Close()
		b.stdin = nil
	}
}

// Stop asks the shell to terminate and waits up to timeout for the waiter.
// It returns regardless of whether the shell actually exited.
func (b *Bridge) Stop(timeout time.Duration) {
	if b.State() == StateExited {
		return
	}
	b.closeInput()
	if p := b.cmd.Process; p != nil {
		var err error
		if runtime.GOOS == "windows" {
			err = p.Kill()
		} else {
			err = p.Signal(syscall.SIGTERM)
		}
		if err != nil {
			b.log.Debug("terminate shell", zap.Int("pid", p.Pid), zap.Error(err))
		}
	}
	select {
	case <-b.done:
	case <-time.After(timeout):
		b.log.Warn("shell did not exit in time", zap.Int("pid", b.PID()), zap.Duration("timeout", timeout))
	}
}
