package engine

import (
	"math/rand"
	"os"
	"os/user"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/poly-cli/poly/internal/session"
)

var varPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces {name} with a user variable, else a dynamic value, in one
// pass. Substituted text is not scanned again and unknown names stay literal.
func (e *Engine) Expand(s *session.Session, text string) string {
	e.mu.RLock()
	vars := e.vars
	defer e.mu.RUnlock()
	return varPattern.ReplaceAllStringFunc(text, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := e.dynamic(s, name); ok {
			return v
		}
		return tok
	})
}

func (e *Engine) dynamic(s *session.Session, name string) (string, bool) {
	switch name {
	case "hostname":
		h, _ := os.Hostname()
		return h, true
	case "date":
		return time.Now().Format("2006-01-02"), true
	case "time":
		return time.Now().Format("15:04:05"), true
	case "os":
		return runtime.GOOS, true
	case "random":
		return strconv.Itoa(rand.Intn(100000)), true
	case "cwd":
		return s.Cwd(), true
	case "home":
		h, _ := os.UserHomeDir()
		return h, true
	case "config":
		return e.configDir, true
	case "user":
		return Username(), true
	}
	return "", false
}

// Username is the current login name.
func Username() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	if n := os.Getenv("USER"); n != "" {
		return n
	}
	return os.Getenv("USERNAME")
}
