// Package builtin implements the host verbs: tabs, filesystem wrappers,
// processes, downloads and the alias/variable tables.
package builtin

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/config"
	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/errs"
	"github.com/poly-cli/poly/internal/extension"
)

// Deps are the collaborators builtins reach outside the engine for.
type Deps struct {
	Extensions *extension.Registry
	Config     *config.Config
	HTTP       *resty.Client
	Log        *zap.Logger

	// Command builds external processes; tests replace it.
	Command func(ctx context.Context, name string, args ...string) *exec.Cmd
	// Now stamps exports.
	Now func() time.Time
}

type builtins struct {
	Deps
	help map[string]string
}

// Register installs every builtin verb into e.
func Register(e *engine.Engine, d Deps) {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.HTTP == nil {
		d.HTTP = resty.New().SetTimeout(d.Config.HTTPTimeoutDuration())
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Command == nil {
		d.Command = exec.CommandContext
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	b := &builtins{Deps: d, help: make(map[string]string)}
	b.registerSessions(e)
	b.registerFiles(e)
	b.registerProcesses(e)
	b.registerNet(e)
	b.registerMeta(e)
}

func (b *builtins) add(e *engine.Engine, name, usage string, fn engine.Builtin) {
	b.help[name] = usage
	e.Builtin(name, fn)
}

func (b *builtins) usage(verb string) error {
	u := strings.TrimPrefix(b.help[verb], verb)
	return errs.Usagef(verb, "%s", strings.TrimSpace(u))
}

func (b *builtins) verbs() []string {
	out := make([]string, 0, len(b.help))
	for k := range b.help {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// path is the dequoted remainder, required to be non-empty.
func (b *builtins) path(c *engine.Call) (string, error) {
	text, err := c.Text()
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", b.usage(c.Verb)
	}
	return text, nil
}

// two returns exactly two arguments.
func (b *builtins) two(c *engine.Call) (string, string, error) {
	args, err := c.Args()
	if err != nil {
		return "", "", err
	}
	if len(args) != 2 {
		return "", "", b.usage(c.Verb)
	}
	return args[0], args[1], nil
}
