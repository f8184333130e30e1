package ui

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poly-cli/poly/internal/builtin"
	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/session"
)

func newLoop(t *testing.T) (*Loop, *Queue, string) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	ws := session.NewWorkspace(func(name string) *session.Session { return session.New(name, dir) })
	ws.Create("main")
	eng := engine.New(ws, engine.Options{})
	builtin.Register(eng, builtin.Deps{})
	q := NewQueue()
	l := New(Options{
		Engine: eng,
		Live:   q,
		User:   "alice",
		Host:   "box",
		Now:    func() time.Time { return time.Date(2025, 1, 1, 9, 5, 7, 0, time.UTC) },
	})
	return l, q, dir
}

// drain iterates until no source has anything left.
func drain(l *Loop) {
	ctx := context.Background()
	for l.Iterate(ctx) {
	}
}

func active(l *Loop) *session.Session { return l.ws.Active() }

func TestPlaybackKeystrokes(t *testing.T) {
	p := NewPlayback("x", []string{"ab", "c"}, false)
	var got []Event
	for p.Pending() {
		ev, ok := p.Next()
		require.True(t, ok)
		got = append(got, ev)
	}
	assert.Equal(t, []Event{Rune('a'), Rune('b'), {Key: KeyEnter}, Rune('c'), {Key: KeyEnter}}, got)
	_, ok := p.Next()
	assert.False(t, ok)
	assert.False(t, NewPlayback("empty", nil, false).Pending())

	silent := NewPlayback("quiet", []string{"a"}, true)
	for silent.Pending() {
		ev, _ := silent.Next()
		assert.True(t, ev.Silent)
	}
}

func TestPlayInstallsSourceUntilDrained(t *testing.T) {
	l, q, _ := newLoop(t)
	ctx := context.Background()
	q.Type("x")
	l.Play(NewPlayback("demo", []string{"e"}, true))

	require.True(t, l.Iterate(ctx))
	assert.Equal(t, "e", l.Input())
	assert.Equal(t, 1, q.Len(), "live input waits while playback is current")
	require.True(t, l.Iterate(ctx))
	assert.False(t, l.Replaying())

	require.True(t, l.Iterate(ctx))
	assert.Equal(t, "x", l.Input())
	assert.Zero(t, q.Len())
	assert.False(t, l.Iterate(ctx))
}

func TestSilentEnterSkipsEcho(t *testing.T) {
	l, _, _ := newLoop(t)
	ctx := context.Background()
	for _, r := range "echo hi" {
		l.Handle(ctx, Rune(r))
	}
	l.Handle(ctx, Event{Key: KeyEnter, Silent: true})
	assert.Equal(t, []string{"hi"}, active(l).Lines())
	assert.Equal(t, []string{"echo hi"}, active(l).History())
}

func TestScriptPlaybackOneRunePerIteration(t *testing.T) {
	l, _, _ := newLoop(t)
	script := engine.ParseScript("demo.poly", "# comment\n\necho one\necho two\n")
	l.Play(NewPlayback(script.Name, script.Lines, true))

	ctx := context.Background()
	for range "echo one" {
		require.True(t, l.Iterate(ctx))
	}
	assert.Equal(t, "echo one", l.Input())
	assert.Empty(t, active(l).Lines())

	drain(l)
	assert.Equal(t, []string{"one", "two"}, active(l).Lines())
	assert.Equal(t, []string{"echo one", "echo two"}, active(l).History())
}

func TestVisiblePlaybackEchoes(t *testing.T) {
	l, _, _ := newLoop(t)
	l.Play(NewPlayback("demo", []string{"echo one"}, false))
	drain(l)
	assert.Equal(t, []string{"> echo one", "one"}, active(l).Lines())
}

func TestPlaybackBeforeLive(t *testing.T) {
	l, q, _ := newLoop(t)
	q.Type("echo live\n")
	l.Play(NewPlayback("demo", []string{"echo scripted"}, true))
	drain(l)
	assert.Equal(t, []string{"scripted", "> echo live", "live"}, active(l).Lines())
}

func TestRunScriptSwapsPlayback(t *testing.T) {
	l, q, dir := newLoop(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested.poly"), []byte("echo nested\n"), 0o644))
	q.Type("run nested.poly\n")
	drain(l)
	assert.Equal(t, []string{"> run nested.poly", "> echo nested", "nested"}, active(l).Lines())
	assert.False(t, l.Replaying())
}

func TestExitEndsLoop(t *testing.T) {
	l, q, _ := newLoop(t)
	q.Type("exit && echo never\necho after\n")
	drain(l)
	assert.True(t, l.Done())
	assert.Equal(t, []string{"> exit && echo never"}, active(l).Lines())
	assert.Equal(t, len("echo after")+1, q.Len())
}

func TestSessionKeys(t *testing.T) {
	l, q, _ := newLoop(t)
	ctx := context.Background()

	q.Type("ec")
	q.Push(Event{Key: KeyNewSession})
	drain(l)
	assert.Equal(t, 2, l.ws.Len())
	assert.Equal(t, builtin.DefaultTabName, active(l).Name())
	assert.Empty(t, l.Input())

	l.Handle(ctx, Event{Key: KeyTab})
	assert.Equal(t, "main", active(l).Name())
	l.Handle(ctx, Event{Key: KeyBackTab})
	assert.Equal(t, builtin.DefaultTabName, active(l).Name())

	l.Handle(ctx, Event{Key: KeyCloseSession})
	assert.Equal(t, []string{"main"}, l.ws.Names())
	assert.False(t, l.Done())
	l.Handle(ctx, Event{Key: KeyCloseSession})
	assert.True(t, l.Done())
	assert.False(t, l.Iterate(ctx))
}

func TestTabDeleteLastSessionEndsLoop(t *testing.T) {
	l, q, _ := newLoop(t)
	q.Type("tab delete main\n")
	drain(l)
	assert.True(t, l.Done())
	assert.Zero(t, l.ws.Len())
}

func TestEditing(t *testing.T) {
	l, _, _ := newLoop(t)
	ctx := context.Background()
	for _, r := range "héllo" {
		l.Handle(ctx, Rune(r))
	}
	l.Handle(ctx, Rune('\x01'))
	l.Handle(ctx, Event{Key: KeyBackspace})
	l.Handle(ctx, Event{Key: KeyBackspace})
	assert.Equal(t, "hél", l.Input())

	l.Handle(ctx, Event{Key: KeyEnter})
	assert.Equal(t, []string{"> hél", "Unknown: hél"}, active(l).Lines())
}

func TestBlankSubmitIgnored(t *testing.T) {
	l, q, _ := newLoop(t)
	q.Type("   \n")
	drain(l)
	assert.Empty(t, active(l).Lines())
	assert.Empty(t, active(l).History())
}

func TestSuggestionKeys(t *testing.T) {
	l, q, _ := newLoop(t)
	q.Type("tab ")
	drain(l)

	sugs, sel := l.Suggestions()
	assert.Equal(t, []string{"tab create", "tab delete", "tab export", "tab mode", "tab title"}, sugs)
	assert.Zero(t, sel)

	ctx := context.Background()
	l.Handle(ctx, Event{Key: KeyDown})
	l.Handle(ctx, Event{Key: KeyDown})
	l.Handle(ctx, Event{Key: KeyUp})
	_, sel = l.Suggestions()
	assert.Equal(t, 1, sel)

	l.Handle(ctx, Event{Key: KeyRight})
	assert.Equal(t, "tab delete", l.Input())
}

func TestCompletions(t *testing.T) {
	l, _, dir := newLoop(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "alpha"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "alpha", "inner"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apple.txt"), nil, 0o644))
	l.ws.Create("My Tab")
	sep := string(filepath.Separator)

	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"ec", []string{"echo"}},
		{"echo", nil},
		{"cd a", []string{"cd alpha" + sep, "cd apple.txt"}},
		{"copy apple.txt al", []string{"copy apple.txt alpha" + sep}},
		{"cd alpha" + sep, []string{"cd alpha" + sep + "inner" + sep}},
		{"read zz", nil},
		{"tab ti", []string{"tab title"}},
		{"tab mode ", []string{"tab mode lnx", "tab mode poly", "tab mode pws", "tab mode win"}},
		{"tab mode p", []string{"tab mode poly", "tab mode pws"}},
		{"tab delete My", []string{"tab delete My Tab"}},
		{"tab title x", nil},
		{"ppm d", []string{"ppm disable", "ppm doctor"}},
		{"ppm install x", nil},
		{"color he", []string{"color header"}},
		{"color ghost re", []string{"color ghost red"}},
		{"color ghost red ", nil},
		{"bogus arg", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, l.complete(tt.input))
		})
	}
}

func TestAliasCompletes(t *testing.T) {
	l, q, _ := newLoop(t)
	q.Type("alias greet echo\n")
	drain(l)
	assert.Contains(t, l.complete("gr"), "greet")
}

func TestScrollClamps(t *testing.T) {
	l, _, _ := newLoop(t)
	l.Resize(60, 10)
	s := active(l)
	for i := 0; i < 20; i++ {
		s.Add("line")
	}
	ctx := context.Background()
	l.Handle(ctx, Event{Key: KeyPageUp})
	assert.Equal(t, 6, s.Scroll())
	l.Handle(ctx, Event{Key: KeyPageUp})
	l.Handle(ctx, Event{Key: KeyPageUp})
	assert.Equal(t, 14, s.Scroll())
	l.Handle(ctx, Event{Key: KeyScrollDown})
	assert.Equal(t, 13, s.Scroll())
	l.Handle(ctx, Event{Key: KeyPageDown})
	l.Handle(ctx, Event{Key: KeyPageDown})
	l.Handle(ctx, Event{Key: KeyPageDown})
	assert.Zero(t, s.Scroll())
}

func TestRunHeadless(t *testing.T) {
	l, _, dir := newLoop(t)
	l.Play(NewPlayback("x", []string{"tab create other", "echo in-other", "deldir gone"}, false))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "gone"), 0o755))
	l.RunHeadless(context.Background())

	assert.Equal(t, []string{"main", "other"}, l.ws.Names())
	assert.Equal(t, []string{"> echo in-other", "in-other", "> deldir gone", "Deleted directory gone"}, active(l).Lines())
	assert.NoDirExists(t, filepath.Join(dir, "gone"))
}

func TestTruncateLeft(t *testing.T) {
	assert.Equal(t, "/home/u", truncateLeft("/home/u", 10))
	assert.Equal(t, "...ject", truncateLeft("/home/u/project", 7))
	assert.Equal(t, "..", truncateLeft("/home/u/project", 2))
}
