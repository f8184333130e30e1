// Package engine turns submitted lines into commands: chaining with &&,
// piping with " | ", {name} variable expansion, single-level aliases and
// dispatch to extension commands and builtins.
//
// The alias, variable and command tables live on an Engine value, so
// independent engines can coexist.
package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/argv"
	"github.com/poly-cli/poly/internal/errs"
	"github.com/poly-cli/poly/internal/extension"
	"github.com/poly-cli/poly/internal/session"
)

// DefaultMaxPipeDepth bounds the number of stages in one pipeline.
const DefaultMaxPipeDepth = 16

// Result reports what the caller must do after a line ran.
type Result struct {
	Exit   bool
	Script *Script
}

// Builtin implements a host verb.
type Builtin func(c *Call) error

type command struct {
	h      extension.Handler
	static []string
}

type Options struct {
	Log          *zap.Logger
	MaxPipeDepth int
	ConfigDir    string
}

type Engine struct {
	ws        *session.Workspace
	log       *zap.Logger
	maxDepth  int
	configDir string

	mu       sync.RWMutex
	aliases  map[string]string
	vars     map[string]string
	commands map[string]command
	builtins map[string]Builtin
}

var _ extension.Registrar = (*Engine)(nil)

func New(ws *session.Workspace, opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.MaxPipeDepth <= 0 {
		opts.MaxPipeDepth = DefaultMaxPipeDepth
	}
	return &Engine{
		ws:        ws,
		log:       opts.Log,
		maxDepth:  opts.MaxPipeDepth,
		configDir: opts.ConfigDir,
		aliases:   make(map[string]string),
		vars:      make(map[string]string),
		commands:  make(map[string]command),
		builtins:  make(map[string]Builtin),
	}
}

func (e *Engine) Workspace() *session.Workspace { return e.ws }

// Execute runs line against the workspace's active session. Each &&-separated
// part runs against whichever session is active when it starts. Execution
// stops after a part requests exit or when no sessions remain.
func (e *Engine) Execute(ctx context.Context, line string) Result {
	var res Result
	for _, part := range argv.Cut(line, "&&") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := e.ws.Active()
		if s == nil {
			break
		}
		e.pipeline(ctx, s, part, &res)
		if res.Exit || e.ws.Len() == 0 {
			break
		}
	}
	return res
}

// pipeline folds the stages of one sub-command left to right. Lines a stage
// appends are captured by buffer length, removed, and handed to the next
// stage as a trailing argument.
func (e *Engine) pipeline(ctx context.Context, s *session.Session, line string, res *Result) {
	stages := argv.Cut(line, " | ")
	if len(stages) > e.maxDepth {
		err := errs.Usagef("pipe", "too deep (%d stages, max %d)", len(stages), e.maxDepth)
		s.Add(err.Error())
		return
	}

	var captured string
	for i, stage := range stages {
		stage = strings.TrimSpace(e.Expand(s, stage))
		if i > 0 && captured != "" {
			stage += " " + captured
		}
		before := s.Len()
		e.dispatch(ctx, s, stage, res)
		if res.Exit {
			return
		}
		if i < len(stages)-1 {
			captured = argv.Escape(strings.Join(s.TakeFrom(before), "\n"))
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, s *session.Session, line string, res *Result) {
	verb, rest := argv.Verb(line)
	if verb == "" {
		return
	}
	verb, rest = e.resolveAlias(verb, rest)

	var err error
	if cmd, ok := e.command(verb); ok {
		err = cmd.h(s, cmd.static, rest)
	} else if b, ok := e.builtin(verb); ok {
		err = b(&Call{Ctx: ctx, Engine: e, Session: s, Verb: verb, Rest: rest, result: res})
	} else {
		s.Add("Unknown: " + verb)
		return
	}
	if err != nil {
		s.Add(err.Error())
		e.log.Debug("command failed", zap.String("verb", verb), zap.Stringer("kind", errs.KindOf(err)), zap.Error(err))
	}
}

// resolveAlias rewrites the first token once. The target's own first token is
// not looked up again.
func (e *Engine) resolveAlias(verb, rest string) (string, string) {
	e.mu.RLock()
	to, ok := e.aliases[verb]
	e.mu.RUnlock()
	if !ok {
		return verb, rest
	}
	v, extra := argv.Verb(to)
	switch {
	case extra == "":
		return v, rest
	case rest == "":
		return v, extra
	default:
		return v, extra + " " + rest
	}
}

func (e *Engine) command(verb string) (command, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.commands[verb]
	return c, ok
}

func (e *Engine) builtin(verb string) (Builtin, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.builtins[verb]
	if !ok {
		b, ok = e.builtins[strings.ToLower(verb)]
	}
	return b, ok
}

// DefineCommand registers an extension command. Extension commands shadow
// builtins of the same name.
func (e *Engine) DefineCommand(name string, h extension.Handler, static []string) {
	e.mu.Lock()
	e.commands[name] = command{h: h, static: static}
	e.mu.Unlock()
}

func (e *Engine) DefineAlias(from, to string) {
	e.mu.Lock()
	e.aliases[from] = to
	e.mu.Unlock()
}

// Builtin registers a host verb.
func (e *Engine) Builtin(name string, b Builtin) {
	e.mu.Lock()
	e.builtins[name] = b
	e.mu.Unlock()
}

func (e *Engine) SetVar(name, value string) {
	e.mu.Lock()
	e.vars[name] = value
	e.mu.Unlock()
}

func (e *Engine) Vars() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

func (e *Engine) Aliases() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.aliases))
	for k, v := range e.aliases {
		out[k] = v
	}
	return out
}

// Commands lists every dispatchable verb, extensions and builtins together,
// sorted and without duplicates.
func (e *Engine) Commands() []string {
	e.mu.RLock()
	seen := make(map[string]bool, len(e.commands)+len(e.builtins))
	for k := range e.commands {
		seen[k] = true
	}
	for k := range e.builtins {
		seen[k] = true
	}
	e.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
