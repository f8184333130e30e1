package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poly-cli/poly/internal/config"
	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/extension"
	"github.com/poly-cli/poly/internal/session"
)

type harness struct {
	t   *testing.T
	dir string
	ws  *session.Workspace
	eng *engine.Engine
	cfg *config.Config

	mu       sync.Mutex
	commands [][]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	h := &harness{t: t, dir: dir, cfg: config.Default()}
	h.ws = session.NewWorkspace(func(name string) *session.Session { return session.New(name, dir) })
	h.ws.Create("main")
	h.eng = engine.New(h.ws, engine.Options{})
	reg := extension.NewRegistry(nil)
	Register(h.eng, Deps{
		Extensions: reg,
		Config:     h.cfg,
		Command:    h.command,
		Now:        func() time.Time { return time.Date(2025, 7, 2, 10, 30, 0, 0, time.UTC) },
	})
	return h
}

// command records external invocations and echoes them instead of running.
func (h *harness) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	h.mu.Lock()
	h.commands = append(h.commands, append([]string{name}, args...))
	h.mu.Unlock()
	if name == "/bin/sh" || name == "cmd" {
		return exec.CommandContext(ctx, name, args...)
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", "echo ran "+name+" "+strings.Join(args, " "))
}

func (h *harness) run(line string) engine.Result {
	return h.eng.Execute(context.Background(), line)
}

func (h *harness) lines() []string {
	return h.ws.Active().Lines()
}

func (h *harness) reset() {
	h.ws.Active().Clear()
}

func (h *harness) write(name, content string) string {
	p := filepath.Join(h.dir, name)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(h.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func unixOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestTab(t *testing.T) {
	h := newHarness(t)

	h.run("tab")
	assert.Equal(t, []string{"Usage: tab title <t> | mode <m> | create [t] | delete <t> | export [t]"}, h.lines())
	h.reset()

	h.run("tab title Work Stuff")
	assert.Equal(t, "Work Stuff", h.ws.Active().Name())

	h.run("tab mode zsh")
	assert.Equal(t, []string{"Invalid mode: zsh"}, h.lines())
	h.reset()

	h.run("tab create")
	assert.Equal(t, DefaultTabName, h.ws.Active().Name())
	h.run("tab create scratch && tab create scratch")
	assert.Equal(t, 4, h.ws.Len())

	h.run("tab delete scratch")
	assert.Equal(t, []string{"Work Stuff", DefaultTabName}, h.ws.Names())

	h.run("tab delete ghost")
	assert.Equal(t, []string{"No tabs named 'ghost'"}, h.lines())
}

func TestTabExport(t *testing.T) {
	h := newHarness(t)
	h.run("echo alpha && echo beta")
	h.run("tab export")

	want := filepath.Join(h.dir, "main-20250702-103000.txt")
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta", string(data))
	assert.Equal(t, "Exported to "+want, h.lines()[2])

	h.cfg.ExportDir = filepath.Join(h.dir, "exports")
	h.run("tab export main")
	_, err = os.Stat(filepath.Join(h.cfg.ExportDir, "main-20250702-103000.txt"))
	assert.NoError(t, err)

	h.reset()
	h.run("tab export nobody")
	assert.Equal(t, []string{"No tabs named 'nobody'"}, h.lines())
}

func TestCdAndCwd(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Mkdir(filepath.Join(h.dir, "sub dir"), 0o755))

	h.run(`cd "sub dir" && cwd`)
	assert.Equal(t, []string{filepath.Join(h.dir, "sub dir")}, h.lines())
	h.reset()

	h.run("cd nowhere && cwd")
	assert.Equal(t, []string{"cd: no such directory: nowhere", filepath.Join(h.dir, "sub dir")}, h.lines())
	h.reset()

	h.run("cd")
	assert.Equal(t, []string{"Usage: cd <path>"}, h.lines())
}

func TestColor(t *testing.T) {
	h := newHarness(t)
	h.run("color header red")
	h.run("color prompt #00ff00")
	assert.Equal(t, map[string]string{"header": "1", "prompt": "#00ff00"}, h.ws.Active().Colors())

	h.run("color header chartreuse-ish")
	h.run("color nose red")
	assert.Equal(t, []string{"Unknown color: chartreuse-ish", "Usage: color <target> <color>"}, h.lines())
}

func TestHistoryAndClear(t *testing.T) {
	h := newHarness(t)
	s := h.ws.Active()
	s.Record("cwd")
	s.Record("echo hi")
	h.run("history")
	assert.Equal(t, []string{"   1  cwd", "   2  echo hi"}, h.lines())
	h.run("clear")
	assert.Empty(t, h.lines())
}

func TestFileVerbs(t *testing.T) {
	h := newHarness(t)

	h.run("makedir a/b && make a/b/note.txt && make a/b/note.txt")
	assert.DirExists(t, filepath.Join(h.dir, "a", "b"))
	assert.FileExists(t, filepath.Join(h.dir, "a", "b", "note.txt"))
	lines := h.lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "make: ")
	h.reset()

	h.write("a/b/note.txt", "hello\nworld\n")
	h.run("read a/b/note.txt")
	assert.Equal(t, []string{"hello", "world"}, h.lines())
	h.reset()

	h.run("copy a/b/note.txt copy.txt && move copy.txt moved.txt")
	assert.FileExists(t, filepath.Join(h.dir, "moved.txt"))
	assert.NoFileExists(t, filepath.Join(h.dir, "copy.txt"))

	h.run("copy a c")
	assert.FileExists(t, filepath.Join(h.dir, "c", "b", "note.txt"))

	h.run("remove moved.txt")
	assert.NoFileExists(t, filepath.Join(h.dir, "moved.txt"))
	h.reset()

	h.run("remove a")
	assert.Equal(t, []string{"Usage: remove a is a directory, use deldir"}, h.lines())
	h.reset()

	h.run("remove missing.txt")
	assert.Equal(t, []string{"remove: not found: missing.txt"}, h.lines())
	h.reset()

	h.run("deldir c")
	h.ws.Active().Wait()
	assert.NoDirExists(t, filepath.Join(h.dir, "c"))
	assert.Equal(t, []string{"Deleted directory c"}, h.lines())
	h.reset()

	h.run("move only-one")
	assert.Equal(t, []string{"Usage: move <src> <dst>"}, h.lines())
}

func TestReadBinaryAndMarkdown(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "blob.bin"), []byte{0x00, 0x01, 0x02, 0xff, 0x00, 0x7f}, 0o644))
	h.run("read blob.bin")
	lines := h.lines()
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "00000000  00 01 02 ff 00 7f"), lines[0])
	h.reset()

	h.write("doc.md", "# Title\n\nSome *text*.\n")
	h.run("read doc.md")
	joined := strings.Join(h.lines(), "\n")
	assert.Contains(t, joined, "Title")
	assert.Contains(t, joined, "text")
}

func TestFilesAndTree(t *testing.T) {
	h := newHarness(t)
	h.write("src/main.go", "package main")
	h.write("src/util/util.go", "package util")
	h.write("README.md", "readme")

	h.run("files")
	assert.Equal(t, []string{"README.md", "src" + string(filepath.Separator)}, h.lines())
	h.reset()

	h.run("files **/*.go")
	assert.ElementsMatch(t, []string{filepath.Join("src", "main.go"), filepath.Join("src", "util", "util.go")}, h.lines())
	h.reset()

	h.run("files *.txt")
	assert.Equal(t, []string{"No matches for *.txt"}, h.lines())
	h.reset()

	h.run("tree src")
	sep := string(filepath.Separator)
	assert.Equal(t, []string{
		"src" + sep,
		"  main.go",
		"  util" + sep,
		"    util.go",
	}, h.lines())
}

func TestTreeStopsAtLimit(t *testing.T) {
	limit := maxTreeItems
	maxTreeItems = 3
	t.Cleanup(func() { maxTreeItems = limit })

	h := newHarness(t)
	for i := 0; i < 10; i++ {
		h.write(fmt.Sprintf("big/f%02d.txt", i), "x")
	}
	h.run("tree big")
	lines := h.lines()
	require.Len(t, lines, 5)
	assert.Equal(t, "big"+string(filepath.Separator), lines[0])
	assert.Equal(t, "... (truncated)", lines[4])
	h.reset()

	h.write("small/a.txt", "x")
	h.write("small/b.txt", "x")
	h.write("small/c.txt", "x")
	h.run("tree small")
	assert.NotContains(t, h.lines(), "... (truncated)")
}

func TestRunScriptReturnsPlayback(t *testing.T) {
	h := newHarness(t)
	h.write("setup.poly", "# setup\n\necho one\necho two\n")

	res := h.run("run setup.poly")
	require.NotNil(t, res.Script)
	assert.Equal(t, []string{"echo one", "echo two"}, res.Script.Lines)

	res = h.run("run missing.poly")
	assert.Nil(t, res.Script)
	assert.Equal(t, []string{"run: not found: missing.poly"}, h.lines())
}

func TestRunShellCommand(t *testing.T) {
	unixOnly(t)
	h := newHarness(t)
	h.run(`run printf 'one\ntwo\n'; echo err 1>&2`)
	h.ws.Active().Wait()
	lines := h.lines()
	assert.ElementsMatch(t, []string{"one", "two", "err"}, lines)
}

func TestKillAndPower(t *testing.T) {
	unixOnly(t)
	h := newHarness(t)
	h.run("kill sleepy")
	h.run("restart")

	lines := h.lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "ran pkill -x sleepy", lines[0])
	assert.Equal(t, "Killed sleepy", lines[1])
	assert.Equal(t, "ran shutdown -r now", lines[2])
}

func TestKillMissingPid(t *testing.T) {
	unixOnly(t)
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())
	pid := cmd.ProcessState.Pid()

	h := newHarness(t)
	h.run(fmt.Sprintf("kill %d", pid))
	assert.Equal(t, []string{fmt.Sprintf("kill: not found: %d", pid)}, h.lines())
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/file.txt" {
			fmt.Fprint(w, "payload")
			return
		}
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	h := newHarness(t)
	h.run("download " + srv.URL + "/file.txt")
	h.ws.Active().Wait()
	data, err := os.ReadFile(filepath.Join(h.dir, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "Saved file.txt (7 bytes)", h.lines()[1])
	h.reset()

	h.run("download " + srv.URL + "/missing saved.bin")
	h.ws.Active().Wait()
	assert.NoFileExists(t, filepath.Join(h.dir, "saved.bin"))
	assert.Equal(t, "download: HTTP 410", h.lines()[1])
	h.reset()

	h.run("download notaurl")
	assert.Equal(t, []string{`Usage: download invalid URL "notaurl"`}, h.lines())
}

func TestAliasVariableEcho(t *testing.T) {
	h := newHarness(t)
	h.run("alias say echo")
	h.run(`variable who "big world"`)
	h.run("say hello {who}")
	h.run("aliases && variables")
	assert.Equal(t, []string{"hello big world", "say = echo", "who = big world"}, h.lines())
	h.reset()

	h.run("alias")
	assert.Equal(t, []string{"Usage: alias <from> <to>"}, h.lines())
}

func TestExitStopsChain(t *testing.T) {
	h := newHarness(t)
	res := h.run("quit && echo never")
	assert.True(t, res.Exit)
	assert.Empty(t, h.lines())
}

func TestHelpAndPlugins(t *testing.T) {
	h := newHarness(t)
	h.eng.DefineCommand("calc", func(extension.Session, []string, string) error { return nil }, nil)
	h.run("help")
	joined := strings.Join(h.lines(), "\n")
	assert.Contains(t, joined, "  tab title <t>")
	assert.Contains(t, joined, "Extensions: calc")
	h.reset()

	h.run("plugins")
	assert.Equal(t, []string{"No extensions loaded."}, h.lines())
}

type lineSink struct{ lines []string }

func (l *lineSink) Add(text string) { l.lines = append(l.lines, text) }

func TestLineWriter(t *testing.T) {
	sink := &lineSink{}
	w := newLineWriter(sink)
	fmt.Fprint(w, "par")
	fmt.Fprint(w, "tial\n\x1b[32mgreen\x1b[0m\r\n\n   \nlast")
	assert.Equal(t, []string{"partial", "green"}, sink.lines)
	w.Flush()
	assert.Equal(t, []string{"partial", "green", "last"}, sink.lines)
}
