package extension

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// LuaLoader loads *.lua files. Each file runs in its own interpreter and
// must define a global register_plugin(ctx).
type LuaLoader struct{}

func (LuaLoader) Name() string { return "lua" }

func (LuaLoader) Discover(dir string) ([]Provider, error) {
	files, err := scriptFiles(dir, ".lua")
	if err != nil {
		return nil, err
	}
	var out []Provider
	for _, f := range files {
		out = append(out, &luaProvider{id: "lua:" + stem(f), path: f})
	}
	return out, nil
}

// luaProvider owns one LState. gopher-lua states are not goroutine-safe, so
// every entry into the state holds mu.
type luaProvider struct {
	id   string
	path string

	mu sync.Mutex
	L  *lua.LState
}

func (p *luaProvider) ID() string { return p.id }

func (p *luaProvider) Register(r Registrar) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	L := lua.NewState()
	p.L = L
	if err := L.DoFile(p.path); err != nil {
		return err
	}
	entry, ok := L.GetGlobal("register_plugin").(*lua.LFunction)
	if !ok {
		return fmt.Errorf("%w: register_plugin", errNoEntry)
	}

	ctx := L.NewTable()
	L.SetFuncs(ctx, map[string]lua.LGFunction{
		"define_command": func(L *lua.LState) int {
			base := argBase(L, ctx)
			name := L.CheckString(base)
			fn := L.CheckFunction(base + 1)
			var static []string
			if t, ok := L.Get(base + 2).(*lua.LTable); ok {
				static = tableStrings(t)
			}
			r.DefineCommand(name, p.handler(fn), static)
			return 0
		},
		"define_alias": func(L *lua.LState) int {
			base := argBase(L, ctx)
			r.DefineAlias(L.CheckString(base), L.CheckString(base+1))
			return 0
		},
	})
	return L.CallByParam(lua.P{Fn: entry, NRet: 0, Protect: true}, ctx)
}

func (p *luaProvider) handler(fn *lua.LFunction) Handler {
	return func(s Session, static []string, rest string) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.L == nil {
			return fmt.Errorf("interpreter closed")
		}
		L := p.L
		st := L.NewTable()
		for _, v := range static {
			st.Append(lua.LString(v))
		}
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, sessionTable(L, s), st, lua.LString(rest))
	}
}

// sessionTable exposes add, cwd and name. Functions ignore a leading self
// argument so both s.add(x) and s:add(x) work.
func sessionTable(L *lua.LState, s Session) *lua.LTable {
	t := L.NewTable()
	L.SetFuncs(t, map[string]lua.LGFunction{
		"add": func(L *lua.LState) int {
			if L.GetTop() > 0 {
				s.Add(L.ToString(L.GetTop()))
			}
			return 0
		},
		"cwd": func(L *lua.LState) int {
			L.Push(lua.LString(s.Cwd()))
			return 1
		},
		"name": func(L *lua.LState) int {
			L.Push(lua.LString(s.Name()))
			return 1
		},
	})
	return t
}

func (p *luaProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.L != nil {
		p.L.Close()
		p.L = nil
	}
	return nil
}

func argBase(L *lua.LState, self *lua.LTable) int {
	if t, ok := L.Get(1).(*lua.LTable); ok && t == self {
		return 2
	}
	return 1
}

func tableStrings(t *lua.LTable) []string {
	var out []string
	for i := 1; i <= t.Len(); i++ {
		out = append(out, lua.LVAsString(t.RawGetInt(i)))
	}
	return out
}
