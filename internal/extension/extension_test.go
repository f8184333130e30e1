package extension

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poly-cli/poly/internal/errs"
)

type fakeSession struct {
	lines []string
}

func (f *fakeSession) Add(text string) { f.lines = append(f.lines, text) }
func (f *fakeSession) Cwd() string     { return "/work" }
func (f *fakeSession) Name() string    { return "main" }

type table struct {
	commands map[string]Handler
	static   map[string][]string
	aliases  map[string]string
}

func newTable() *table {
	return &table{commands: map[string]Handler{}, static: map[string][]string{}, aliases: map[string]string{}}
}

func (t *table) DefineCommand(name string, h Handler, static []string) {
	t.commands[name] = h
	t.static[name] = static
}

func (t *table) DefineAlias(from, to string) { t.aliases[from] = to }

func (t *table) call(name, rest string, s Session) error {
	return t.commands[name](s, t.static[name], rest)
}

type funcProvider struct {
	id string
	fn func(Registrar) error
}

func (p funcProvider) ID() string                 { return p.id }
func (p funcProvider) Register(r Registrar) error { return p.fn(r) }

func writePlugin(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestInstallGoProvider(t *testing.T) {
	reg := NewRegistry(nil)
	tab := newTable()
	err := reg.Install(funcProvider{id: "go:greet", fn: func(r Registrar) error {
		r.DefineCommand("greet", func(s Session, static []string, rest string) error {
			s.Add(static[0] + " " + rest)
			return nil
		}, []string{"hello"})
		r.DefineAlias("hi", "greet")
		return nil
	}}, tab)
	require.NoError(t, err)

	s := &fakeSession{}
	require.NoError(t, tab.call("greet", "world", s))
	assert.Equal(t, []string{"hello world"}, s.lines)
	assert.Equal(t, "greet", tab.aliases["hi"])
	assert.Equal(t, []string{"go:greet"}, reg.Loaded())
}

func TestFailedRegistrationCommitsNothing(t *testing.T) {
	reg := NewRegistry(nil)
	tab := newTable()
	err := reg.Install(funcProvider{id: "go:half", fn: func(r Registrar) error {
		r.DefineCommand("half", func(Session, []string, string) error { return nil }, nil)
		panic("boom")
	}}, tab)

	assert.True(t, errs.Is(err, errs.KindPlugin))
	assert.Empty(t, tab.commands)
	assert.Empty(t, reg.Loaded())
	faults := reg.Faults()
	require.Len(t, faults, 1)
	assert.Equal(t, "go:half", faults[0].Provider)
	assert.Contains(t, faults[0].Err.Error(), "panic: boom")
}

func TestHandlerFaultsAreIsolated(t *testing.T) {
	reg := NewRegistry(nil)
	tab := newTable()
	require.NoError(t, reg.Install(funcProvider{id: "go:bad", fn: func(r Registrar) error {
		r.DefineCommand("explode", func(Session, []string, string) error { panic("kaboom") }, nil)
		r.DefineCommand("fail", func(Session, []string, string) error { return errors.New("nope") }, nil)
		r.DefineCommand("usage", func(Session, []string, string) error { return errs.Usagef("usage", "<x>") }, nil)
		return nil
	}}, tab))

	s := &fakeSession{}
	err := tab.call("explode", "", s)
	assert.True(t, errs.Is(err, errs.KindPlugin))
	assert.Equal(t, "plugin go:bad: panic: kaboom", err.Error())

	err = tab.call("fail", "", s)
	assert.Equal(t, "plugin go:bad: nope", err.Error())

	err = tab.call("usage", "", s)
	assert.True(t, errs.Is(err, errs.KindUsage), "classified errors pass through")

	require.Len(t, reg.Faults(), 2)
	assert.Equal(t, "explode", reg.Faults()[0].Command)
}

func TestLuaPlugin(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "greet.lua", `
function register_plugin(ctx)
  ctx.define_command("greet", function(s, static, rest)
    s:add(static[1] .. " " .. rest .. " from " .. s.name() .. " in " .. s:cwd())
  end, {"hello"})
  ctx:define_alias("hey", "greet")
  ctx.define_command("broken", function(s, static, rest)
    error("lua says no")
  end)
end
`)
	writePlugin(t, dir, "noentry.lua", `x = 1`)
	writePlugin(t, dir, "syntax.lua", `function (`)

	reg := NewRegistry(nil, LuaLoader{})
	defer reg.Close()
	tab := newTable()
	reg.Load(dir, tab)

	assert.Equal(t, []string{"lua:greet"}, reg.Loaded())
	require.Len(t, reg.Faults(), 2)
	assert.ErrorIs(t, reg.Faults()[0].Err, errNoEntry)
	assert.Equal(t, "lua:syntax", reg.Faults()[1].Provider)

	s := &fakeSession{}
	require.NoError(t, tab.call("greet", "world", s))
	assert.Equal(t, []string{"hello world from main in /work"}, s.lines)
	assert.Equal(t, "greet", tab.aliases["hey"])

	err := tab.call("broken", "", s)
	assert.True(t, errs.Is(err, errs.KindPlugin))
	assert.Contains(t, err.Error(), "lua says no")
	assert.Len(t, reg.Faults(), 3)
}

func TestJSPlugin(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "hello.js", `
function registerPlugin(ctx) {
  ctx.defineCommand("hello", function (s, stat, rest) {
    s.add(stat.join(",") + ":" + rest + "@" + s.name());
  }, ["a", "b"]);
  ctx.defineAlias("hi", "hello");
  ctx.defineCommand("throws", function () { throw new Error("js says no"); });
}
`)
	writePlugin(t, dir, "empty.js", `var nothing = true;`)

	reg := NewRegistry(nil, JSLoader{})
	defer reg.Close()
	tab := newTable()
	reg.Load(dir, tab)

	assert.Equal(t, []string{"js:hello"}, reg.Loaded())
	require.Len(t, reg.Faults(), 1)
	assert.Equal(t, "js:empty", reg.Faults()[0].Provider)

	s := &fakeSession{}
	require.NoError(t, tab.call("hello", "there", s))
	assert.Equal(t, []string{"a,b:there@main"}, s.lines)
	assert.Equal(t, "hello", tab.aliases["hi"])

	err := tab.call("throws", "", s)
	assert.True(t, errs.Is(err, errs.KindPlugin))
	assert.Contains(t, err.Error(), "js says no")
}

func TestMissingDirectoryLoadsNothing(t *testing.T) {
	reg := NewRegistry(nil, LuaLoader{}, JSLoader{})
	reg.Load(filepath.Join(t.TempDir(), "absent"), newTable())
	assert.Empty(t, reg.Loaded())
	assert.Empty(t, reg.Faults())
}
