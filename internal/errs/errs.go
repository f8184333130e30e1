// Package errs defines the error taxonomy shared by the command engine,
// builtins, extensions and shell bridges.
//
// Every user-facing failure carries a Kind so the command boundary can render
// it as a single buffer line without aborting the session or the process.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindOther is any error that was not produced by this package.
	KindOther Kind = iota
	// KindUsage is a bad or missing argument.
	KindUsage
	// KindNotFound is a missing path, process, session or extension.
	KindNotFound
	// KindEnvironment is a permission or OS-call failure.
	KindEnvironment
	// KindNetwork is a fetch failure.
	KindNetwork
	// KindPlugin is a fault raised while loading or running an extension.
	KindPlugin
	// KindBridge is a shell spawn failure.
	KindBridge
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindNotFound:
		return "not found"
	case KindEnvironment:
		return "environment"
	case KindNetwork:
		return "network"
	case KindPlugin:
		return "plugin"
	case KindBridge:
		return "bridge"
	default:
		return "error"
	}
}

// Error is a classified failure of a single operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindUsage {
		if e.Op == "" {
			return "Usage: " + e.Err.Error()
		}
		return "Usage: " + e.Op + " " + e.Err.Error()
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Usagef reports a usage line for op, e.g. Usagef("cd", "<path>").
func Usagef(op, format string, args ...any) error {
	return &Error{Kind: KindUsage, Op: op, Err: fmt.Errorf(format, args...)}
}

// NotFound reports that what is missing for op.
func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("not found: %s", what)}
}

// Env wraps an OS-level failure.
func Env(op string, err error) error {
	return &Error{Kind: KindEnvironment, Op: op, Err: err}
}

// Network wraps a fetch failure.
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Plugin wraps a fault raised by extension id.
func Plugin(id string, err error) error {
	return &Error{Kind: KindPlugin, Op: "plugin " + id, Err: err}
}

// BridgeFault wraps a shell spawn failure.
func BridgeFault(op string, err error) error {
	return &Error{Kind: KindBridge, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
