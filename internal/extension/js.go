package extension

import (
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"
)

// JSLoader loads *.js files. Each file runs in its own runtime and must
// define a global registerPlugin(ctx).
type JSLoader struct{}

func (JSLoader) Name() string { return "js" }

func (JSLoader) Discover(dir string) ([]Provider, error) {
	files, err := scriptFiles(dir, ".js")
	if err != nil {
		return nil, err
	}
	var out []Provider
	for _, f := range files {
		out = append(out, &jsProvider{id: "js:" + stem(f), path: f})
	}
	return out, nil
}

type jsProvider struct {
	id   string
	path string

	mu sync.Mutex
	vm *goja.Runtime
}

func (p *jsProvider) ID() string { return p.id }

func (p *jsProvider) Register(r Registrar) error {
	src, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	vm := goja.New()
	p.vm = vm
	if _, err := vm.RunScript(p.path, string(src)); err != nil {
		return err
	}
	entry, ok := goja.AssertFunction(vm.Get("registerPlugin"))
	if !ok {
		return fmt.Errorf("%w: registerPlugin", errNoEntry)
	}

	ctx := vm.NewObject()
	_ = ctx.Set("defineCommand", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("defineCommand: handler for %q is not a function", name))
		}
		r.DefineCommand(name, p.handler(fn), exportStrings(call.Argument(2)))
		return goja.Undefined()
	})
	_ = ctx.Set("defineAlias", func(call goja.FunctionCall) goja.Value {
		r.DefineAlias(call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_, err = entry(goja.Undefined(), ctx)
	return err
}

func (p *jsProvider) handler(fn goja.Callable) Handler {
	return func(s Session, static []string, rest string) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		vm := p.vm
		if vm == nil {
			return fmt.Errorf("runtime closed")
		}

		sess := vm.NewObject()
		_ = sess.Set("add", func(call goja.FunctionCall) goja.Value {
			s.Add(call.Argument(0).String())
			return goja.Undefined()
		})
		_ = sess.Set("cwd", func(goja.FunctionCall) goja.Value { return vm.ToValue(s.Cwd()) })
		_ = sess.Set("name", func(goja.FunctionCall) goja.Value { return vm.ToValue(s.Name()) })

		args := make([]any, len(static))
		for i, v := range static {
			args[i] = v
		}
		_, err := fn(goja.Undefined(), sess, vm.NewArray(args...), vm.ToValue(rest))
		return err
	}
}

func (p *jsProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vm = nil
	return nil
}

func exportStrings(v goja.Value) []string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	items, ok := v.Export().([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprint(it))
	}
	return out
}
