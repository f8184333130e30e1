// Package extension is the plugin boundary. Extensions are Providers that
// register commands and aliases through a Registrar; Loaders discover
// Providers on disk. Every provider is installed through a guarded registrar,
// so a failing or panicking extension is recorded as a fault instead of
// taking the host down.
package extension

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/errs"
)

// Session is the view of a session an extension handler gets.
type Session interface {
	Add(text string)
	Cwd() string
	Name() string
}

// Handler runs a registered command. static is the payload given at
// registration; rest is the remainder of the command line.
type Handler func(s Session, static []string, rest string) error

// Registrar is the capability context handed to a provider.
type Registrar interface {
	DefineCommand(name string, h Handler, static []string)
	DefineAlias(from, to string)
}

// Provider is one extension.
type Provider interface {
	ID() string
	Register(r Registrar) error
}

// Loader finds providers in a directory.
type Loader interface {
	Name() string
	Discover(dir string) ([]Provider, error)
}

// Fault is a recorded extension failure.
type Fault struct {
	Provider string
	Command  string // empty for load faults
	Err      error
	At       time.Time
}

func (f Fault) String() string {
	if f.Command == "" {
		return fmt.Sprintf("%s: load: %v", f.Provider, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Provider, f.Command, f.Err)
}

var errNoEntry = errors.New("no registration entry point")

type Registry struct {
	loaders []Loader
	log     *zap.Logger

	mu        sync.Mutex
	loaded    []string
	faults    []Fault
	providers []Provider
}

func NewRegistry(log *zap.Logger, loaders ...Loader) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{loaders: loaders, log: log}
}

// Load discovers providers in dir with every loader and installs them into
// target. Failures are recorded, never returned.
func (r *Registry) Load(dir string, target Registrar) {
	for _, l := range r.loaders {
		providers, err := l.Discover(dir)
		if err != nil {
			r.fault(Fault{Provider: l.Name(), Err: err})
			continue
		}
		for _, p := range providers {
			_ = r.Install(p, target)
		}
	}
}

// Install registers p into target. Registrations made by p only reach target
// when Register succeeds.
func (r *Registry) Install(p Provider, target Registrar) error {
	id := p.ID()
	g := &guard{reg: r, id: id}
	err := protect(func() error { return p.Register(g) })
	if err != nil {
		r.fault(Fault{Provider: id, Err: err})
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
		return errs.Plugin(id, err)
	}
	for _, c := range g.commands {
		target.DefineCommand(c.name, c.h, c.static)
	}
	for _, a := range g.aliases {
		target.DefineAlias(a[0], a[1])
	}

	r.mu.Lock()
	r.loaded = append(r.loaded, id)
	r.providers = append(r.providers, p)
	r.mu.Unlock()
	r.log.Info("extension loaded", zap.String("id", id), zap.Int("commands", len(g.commands)), zap.Int("aliases", len(g.aliases)))
	return nil
}

// Loaded lists the ids of successfully installed providers in load order.
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loaded...)
}

func (r *Registry) Faults() []Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fault(nil), r.faults...)
}

// Close releases interpreter state held by providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	providers := r.providers
	r.providers = nil
	r.mu.Unlock()

	var errList []error
	for _, p := range providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errList = append(errList, fmt.Errorf("close %s: %w", p.ID(), err))
			}
		}
	}
	return errors.Join(errList...)
}

func (r *Registry) fault(f Fault) {
	f.At = time.Now()
	r.mu.Lock()
	r.faults = append(r.faults, f)
	r.mu.Unlock()
	r.log.Warn("extension fault", zap.String("provider", f.Provider), zap.String("command", f.Command), zap.Error(f.Err))
}

// wrap isolates a handler. Panics and unclassified errors become faults;
// errors that already carry an errs.Kind pass through as ordinary command
// failures.
func (r *Registry) wrap(id, name string, h Handler) Handler {
	return func(s Session, static []string, rest string) error {
		err := protect(func() error { return h(s, static, rest) })
		if err == nil || errs.KindOf(err) != errs.KindOther {
			return err
		}
		r.fault(Fault{Provider: id, Command: name, Err: err})
		return errs.Plugin(id, err)
	}
}

func protect(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

type pendingCommand struct {
	name   string
	h      Handler
	static []string
}

// guard buffers one provider's registrations until Register returns.
type guard struct {
	reg      *Registry
	id       string
	commands []pendingCommand
	aliases  [][2]string
}

func (g *guard) DefineCommand(name string, h Handler, static []string) {
	if name == "" || h == nil {
		return
	}
	g.commands = append(g.commands, pendingCommand{
		name:   name,
		h:      g.reg.wrap(g.id, name, h),
		static: append([]string(nil), static...),
	})
}

func (g *guard) DefineAlias(from, to string) {
	if from == "" || to == "" {
		return
	}
	g.aliases = append(g.aliases, [2]string{from, to})
}
