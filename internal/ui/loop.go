// Package ui is the cooperative render and input loop. It owns no terminal:
// a front end pushes live events into a Queue, calls Iterate once per frame
// and draws View.
package ui

import (
	"context"
	"os"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/builtin"
	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/session"
)

const (
	defaultWidth   = 80
	defaultHeight  = 24
	defaultSidebar = 23
)

type Options struct {
	Engine *engine.Engine
	// Live is polled whenever no playback is pending.
	Live Source
	Log  *zap.Logger
	// SidebarWidth is the column of the sidebar divider.
	SidebarWidth int
	User         string
	Host         string
	Now          func() time.Time
}

// Loop holds everything one frame needs: the input line, suggestion state,
// the current playback and the terminal size.
type Loop struct {
	eng  *engine.Engine
	ws   *session.Workspace
	live Source
	log  *zap.Logger
	// src is the current input source: the playback while one is installed,
	// otherwise live.
	src      Source
	playback *Playback

	input       string
	suggestions []string
	selected    int

	width, height int
	sidebar       int
	user, host    string
	now           func() time.Time
	done          bool
}

func New(opts Options) *Loop {
	l := &Loop{
		eng:     opts.Engine,
		ws:      opts.Engine.Workspace(),
		live:    opts.Live,
		log:     opts.Log,
		width:   defaultWidth,
		height:  defaultHeight,
		sidebar: opts.SidebarWidth,
		user:    opts.User,
		host:    opts.Host,
		now:     opts.Now,
	}
	if l.live == nil {
		l.live = NewQueue()
	}
	l.src = l.live
	if l.log == nil {
		l.log = zap.NewNop()
	}
	if l.sidebar <= 1 {
		l.sidebar = defaultSidebar
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.user == "" {
		l.user = engine.Username()
	}
	if l.host == "" {
		l.host, _ = os.Hostname()
	}
	return l
}

// Play makes p the current source, discarding whatever was left of the
// previous playback. A nil p switches back to live input.
func (l *Loop) Play(p *Playback) {
	l.playback = p
	if p == nil {
		l.src = l.live
		return
	}
	l.src = p
	l.log.Debug("playback", zap.String("script", p.Name()), zap.Bool("silent", p.Silent()))
}

// Replaying reports whether playback input is still pending.
func (l *Loop) Replaying() bool {
	return l.playback != nil && l.playback.Pending()
}

func (l *Loop) Done() bool { return l.done }

func (l *Loop) Input() string { return l.input }

// Suggestions returns the current completions and the selected index.
func (l *Loop) Suggestions() ([]string, int) {
	return l.suggestions, l.selected
}

func (l *Loop) Resize(w, h int) {
	if w > 0 {
		l.width = w
	}
	if h > 0 {
		l.height = h
	}
}

// Iterate runs one frame's worth of input handling: refresh suggestions, then
// take at most one event from the current source. A drained playback hands
// over to live input. It reports whether an event was handled.
func (l *Loop) Iterate(ctx context.Context) bool {
	if l.done {
		return false
	}
	l.refresh()
	ev, ok := l.src.Next()
	if !ok && l.playback != nil {
		l.Play(nil)
		ev, ok = l.src.Next()
	}
	if !ok {
		return false
	}
	l.Handle(ctx, ev)
	return true
}

// RunHeadless drains playback without a terminal, then waits for background
// workers of every open session.
func (l *Loop) RunHeadless(ctx context.Context) {
	for !l.done && l.Replaying() {
		if ctx.Err() != nil {
			return
		}
		l.Iterate(ctx)
	}
	for _, s := range l.ws.Sessions() {
		s.Wait()
	}
}

// refresh recomputes completions. The selection survives only if the list is
// unchanged.
func (l *Loop) refresh() {
	var next []string
	if s := l.ws.Active(); s != nil && s.Mode() == session.Interactive {
		next = l.complete(l.input)
	}
	if !slices.Equal(next, l.suggestions) {
		l.suggestions = next
		l.selected = 0
	}
}

// Handle applies one event.
func (l *Loop) Handle(ctx context.Context, ev Event) {
	defer l.refresh()
	switch ev.Key {
	case KeyInterrupt:
		l.done = true
	case KeyDown:
		if n := len(l.suggestions); n > 0 {
			l.selected = (l.selected + 1) % n
		}
	case KeyUp:
		if n := len(l.suggestions); n > 0 {
			l.selected = (l.selected - 1 + n) % n
		}
	case KeyRight:
		if len(l.suggestions) > 0 {
			l.input = l.suggestions[l.selected]
		}
	case KeyTab:
		l.ws.Next()
		l.input = ""
	case KeyBackTab:
		l.ws.Prev()
		l.input = ""
	case KeyNewSession:
		l.ws.Create(builtin.DefaultTabName)
		l.input = ""
	case KeyCloseSession:
		l.ws.Close(l.ws.Index())
		l.input = ""
		if l.ws.Len() == 0 {
			l.done = true
		}
	case KeyScrollUp:
		l.scroll(1)
	case KeyScrollDown:
		l.scroll(-1)
	case KeyPageUp:
		l.scroll(l.paneHeight())
	case KeyPageDown:
		l.scroll(-l.paneHeight())
	case KeyBackspace:
		if l.input != "" {
			_, size := utf8.DecodeLastRuneInString(l.input)
			l.input = l.input[:len(l.input)-size]
		}
	case KeyEnter:
		l.submit(ctx, ev.Silent)
	case KeyRune:
		if unicode.IsPrint(ev.Rune) {
			l.input += string(ev.Rune)
		}
	}
}

func (l *Loop) scroll(delta int) {
	s := l.ws.Active()
	if s == nil {
		return
	}
	overflow := len(l.wrapped(s)) - l.paneHeight()
	s.ScrollBy(delta, overflow)
}

// submit sends the input line to the active session: as shell input when a
// bridge is attached, otherwise through the engine. A silent submit does not
// echo the line.
func (l *Loop) submit(ctx context.Context, silent bool) {
	line := l.input
	l.input = ""
	s := l.ws.Active()
	if s == nil {
		l.done = true
		return
	}
	if s.Mode() != session.Interactive {
		// WriteInput reports its own failures.
		_ = s.WriteInput(line)
		return
	}
	if strings.TrimSpace(line) == "" {
		return
	}
	s.Record(line)
	if !silent {
		s.Add("> " + line)
	}
	res := l.eng.Execute(ctx, line)
	if res.Script != nil {
		l.Play(NewPlayback(res.Script.Name, res.Script.Lines, false))
	}
	if res.Exit || l.ws.Len() == 0 {
		l.done = true
	}
}
