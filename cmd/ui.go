package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/ui"
)

type keyMap struct {
	Interrupt  key.Binding
	Enter      key.Binding
	Backspace  key.Binding
	Up         key.Binding
	Down       key.Binding
	Accept     key.Binding
	Next       key.Binding
	Prev       key.Binding
	New        key.Binding
	Close      key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
}

var keys = keyMap{
	Interrupt:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Backspace:  key.NewBinding(key.WithKeys("backspace", "ctrl+h")),
	Up:         key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous suggestion")),
	Down:       key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next suggestion")),
	Accept:     key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "accept suggestion")),
	Next:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next session")),
	Prev:       key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous session")),
	New:        key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "new session")),
	Close:      key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "close session")),
	ScrollUp:   key.NewBinding(key.WithKeys("shift+up")),
	ScrollDown: key.NewBinding(key.WithKeys("shift+down")),
	PageUp:     key.NewBinding(key.WithKeys("pgup")),
	PageDown:   key.NewBinding(key.WithKeys("pgdown")),
}

// events translates a key press. Pasted text arrives as several runes.
func (k keyMap) events(msg tea.KeyMsg) []ui.Event {
	bound := []struct {
		b   key.Binding
		key ui.Key
	}{
		{k.Interrupt, ui.KeyInterrupt},
		{k.Enter, ui.KeyEnter},
		{k.Backspace, ui.KeyBackspace},
		{k.ScrollUp, ui.KeyScrollUp},
		{k.ScrollDown, ui.KeyScrollDown},
		{k.Up, ui.KeyUp},
		{k.Down, ui.KeyDown},
		{k.Accept, ui.KeyRight},
		{k.Next, ui.KeyTab},
		{k.Prev, ui.KeyBackTab},
		{k.New, ui.KeyNewSession},
		{k.Close, ui.KeyCloseSession},
		{k.PageUp, ui.KeyPageUp},
		{k.PageDown, ui.KeyPageDown},
	}
	for _, e := range bound {
		if key.Matches(msg, e.b) {
			return []ui.Event{{Key: e.key}}
		}
	}
	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		evs := make([]ui.Event, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			evs = append(evs, ui.Rune(r))
		}
		return evs
	}
	return nil
}

type frameMsg time.Time

func frame(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// model adapts ui.Loop to bubbletea: key presses go to the live queue and
// are handled at once; every frame tick runs one more iteration so playback
// types itself and background output is redrawn.
type model struct {
	ctx   context.Context
	loop  *ui.Loop
	live  *ui.Queue
	frame time.Duration
}

func (m model) Init() tea.Cmd {
	return frame(m.frame)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.loop.Resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		evs := keys.events(msg)
		if len(evs) == 0 {
			return m, nil
		}
		m.live.Push(evs...)
		for range evs {
			m.loop.Iterate(m.ctx)
		}

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.live.Push(ui.Event{Key: ui.KeyScrollUp})
		case tea.MouseButtonWheelDown:
			m.live.Push(ui.Event{Key: ui.KeyScrollDown})
		default:
			return m, nil
		}
		m.loop.Iterate(m.ctx)

	case frameMsg:
		m.loop.Iterate(m.ctx)
		if !m.loop.Done() {
			return m, frame(m.frame)
		}
	}

	if m.loop.Done() {
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	if m.loop.Done() {
		return ""
	}
	return m.loop.View()
}

// runUI runs the full-screen interface until exit, Ctrl+C or the last
// session closes.
func runUI(ctx context.Context, startup bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	live := ui.NewQueue()
	l := a.loop(live)
	if startup {
		p, err := a.startup()
		if err != nil {
			a.ws.Active().Add(fmt.Sprintf("Startup script failed: %v", err))
		}
		if p != nil {
			l.Play(p)
		}
	}

	m := model{ctx: ctx, loop: l, live: live, frame: a.cfg.Frame()}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		a.log.Error("ui", zap.Error(err))
		return err
	}
	return nil
}
