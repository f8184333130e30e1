package session

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Shell is a resolved shell executable plus its arguments.
type Shell struct {
	Path string
	Args []string
}

// ResolveShell picks the native shell for m.
//
//	win  %COMSPEC%, else cmd.exe
//	pws  pwsh when on PATH, else powershell.exe
//	lnx  $SHELL, else the last existing entry of /etc/shells, else /bin/sh
func ResolveShell(m Mode) (Shell, error) {
	switch m {
	case ShellWindows:
		if c := os.Getenv("COMSPEC"); c != "" {
			return Shell{Path: c}, nil
		}
		return Shell{Path: "cmd.exe"}, nil
	case ShellPowerShell:
		if p, err := exec.LookPath("pwsh"); err == nil {
			return Shell{Path: p, Args: []string{"-NoLogo"}}, nil
		}
		return Shell{Path: "powershell.exe", Args: []string{"-NoLogo"}}, nil
	case ShellPosix:
		if sh := os.Getenv("SHELL"); sh != "" {
			return Shell{Path: sh}, nil
		}
		if sh := lastShell("/etc/shells"); sh != "" {
			return Shell{Path: sh}, nil
		}
		if runtime.GOOS == "windows" {
			return Shell{Path: "bash"}, nil
		}
		return Shell{Path: "/bin/sh"}, nil
	}
	return Shell{}, fmt.Errorf("mode %s has no shell", m)
}

// lastShell returns the last listed shell in path that exists on disk.
func lastShell(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var found string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if info, err := os.Stat(line); err == nil && !info.IsDir() {
			found = line
		}
	}
	return found
}
