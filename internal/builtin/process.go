package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/errs"
)

func (b *builtins) registerProcesses(e *engine.Engine) {
	b.add(e, "run", "run <cmd|script.poly>", b.run)
	b.add(e, "kill", "kill <pid|name>", b.kill)
	b.add(e, "shutdown", "shutdown", func(c *engine.Call) error {
		return b.power(c, powerArgs(false))
	})
	b.add(e, "restart", "restart", func(c *engine.Call) error {
		return b.power(c, powerArgs(true))
	})
}

// run plays back .poly scripts and hands anything else to the platform shell
// on a background worker.
func (b *builtins) run(c *engine.Call) error {
	line := strings.TrimSpace(c.Rest)
	if line == "" {
		return b.usage("run")
	}
	if strings.HasSuffix(strings.ToLower(line), ".poly") {
		p, err := b.path(c)
		if err != nil {
			return err
		}
		full := c.Session.Resolve(p)
		if _, err := os.Stat(full); err != nil {
			return fsErr("run", p, err)
		}
		script, err := engine.LoadScript(full)
		if err != nil {
			return errs.Env("run", err)
		}
		c.RunScript(script)
		return nil
	}

	s := c.Session
	name, args := shellArgs(line)
	cmd := b.Command(context.WithoutCancel(c.Ctx), name, args...)
	cmd.Dir = s.Cwd()
	stdout, stderr := newLineWriter(s), newLineWriter(s)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	if err := cmd.Start(); err != nil {
		s.Add(fmt.Sprintf("Error launching '%s': %v", line, err))
		return nil
	}
	s.Go(func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			b.Log.Debug("run exited", zap.String("cmd", line), zap.Int("code", exitErr.ExitCode()))
		}
	})
	return nil
}

func shellArgs(line string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", line}
	}
	return "/bin/sh", []string{"-c", line}
}

func (b *builtins) kill(c *engine.Call) error {
	target, err := b.path(c)
	if err != nil {
		return err
	}
	if pid, err := strconv.Atoi(target); err == nil {
		p, err := os.FindProcess(pid)
		if err != nil {
			return errs.NotFound("kill", target)
		}
		if err := p.Kill(); err != nil {
			if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
				return errs.NotFound("kill", target)
			}
			return errs.Env("kill", err)
		}
		c.Session.Add("Killed " + target)
		return nil
	}

	name, args := "pkill", []string{"-x", target}
	if runtime.GOOS == "windows" {
		name, args = "taskkill", []string{"/F", "/IM", target}
	}
	out, err := b.Command(c.Ctx, name, args...).CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return errs.NotFound("kill", target)
		}
		return errs.Env("kill", err)
	}
	if msg := strings.TrimSpace(string(out)); msg != "" {
		c.Session.Add(msg)
	}
	c.Session.Add("Killed " + target)
	return nil
}

func powerArgs(restart bool) []string {
	switch {
	case runtime.GOOS == "windows" && restart:
		return []string{"/r", "/t", "0"}
	case runtime.GOOS == "windows":
		return []string{"/s", "/t", "0"}
	case restart:
		return []string{"-r", "now"}
	default:
		return []string{"-h", "now"}
	}
}

func (b *builtins) power(c *engine.Call, args []string) error {
	out, err := b.Command(c.Ctx, "shutdown", args...).CombinedOutput()
	if msg := strings.TrimSpace(string(out)); msg != "" {
		c.Session.Add(msg)
	}
	if err != nil {
		return errs.Env(c.Verb, err)
	}
	return nil
}
