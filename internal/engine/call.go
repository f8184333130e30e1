package engine

import (
	"context"

	"github.com/poly-cli/poly/internal/argv"
	"github.com/poly-cli/poly/internal/errs"
	"github.com/poly-cli/poly/internal/session"
)

// Call is one builtin invocation.
type Call struct {
	Ctx     context.Context
	Engine  *Engine
	Session *session.Session
	Verb    string
	Rest    string

	result *Result
}

// Args splits Rest into arguments.
func (c *Call) Args() ([]string, error) {
	args, err := argv.Split(c.Rest)
	if err != nil {
		return nil, errs.Usagef("", "%v", err)
	}
	return args, nil
}

// Text is Rest with quoting removed and whitespace kept.
func (c *Call) Text() (string, error) {
	text, err := argv.Dequote(c.Rest)
	if err != nil {
		return "", errs.Usagef("", "%v", err)
	}
	return text, nil
}

// Exit asks the caller to stop; the rest of the chain is skipped.
func (c *Call) Exit() {
	c.result.Exit = true
}

// RunScript hands a script to the caller for playback.
func (c *Call) RunScript(s *Script) {
	c.result.Script = s
}
