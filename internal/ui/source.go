package ui

import (
	"strings"
	"sync"
)

// Key identifies an input event.
type Key int

const (
	KeyNone Key = iota
	KeyRune
	KeyEnter
	KeyBackspace
	KeyUp
	KeyDown
	KeyRight
	KeyTab
	KeyBackTab
	KeyNewSession
	KeyCloseSession
	KeyScrollUp
	KeyScrollDown
	KeyPageUp
	KeyPageDown
	KeyInterrupt
)

// Event is one keystroke, live or replayed. Silent is set on keystrokes of a
// silent playback; submitting them does not echo the line.
type Event struct {
	Key    Key
	Rune   rune
	Silent bool
}

// Rune is shorthand for a printable keystroke.
func Rune(r rune) Event { return Event{Key: KeyRune, Rune: r} }

// Source yields input events without blocking. ok is false when nothing is
// pending.
type Source interface {
	Next() (ev Event, ok bool)
}

// Queue is the live source: the terminal adapter pushes, the loop pops.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Push(evs ...Event) {
	q.mu.Lock()
	q.events = append(q.events, evs...)
	q.mu.Unlock()
}

// Type pushes s as keystrokes, newlines becoming Enter.
func (q *Queue) Type(s string) {
	q.Push(keystrokes(s)...)
}

func (q *Queue) Next() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Playback replays script lines one keystroke at a time. A silent playback
// submits its lines without echoing them into the buffer.
type Playback struct {
	name   string
	events []Event
	pos    int
	silent bool
}

// NewPlayback queues lines joined by newlines, plus a trailing newline so the
// last line is submitted too.
func NewPlayback(name string, lines []string, silent bool) *Playback {
	text := strings.Join(lines, "\n")
	if len(lines) > 0 {
		text += "\n"
	}
	evs := keystrokes(text)
	for i := range evs {
		evs[i].Silent = silent
	}
	return &Playback{name: name, events: evs, silent: silent}
}

func (p *Playback) Name() string  { return p.name }
func (p *Playback) Silent() bool  { return p.silent }
func (p *Playback) Pending() bool { return p.pos < len(p.events) }

func (p *Playback) Next() (Event, bool) {
	if !p.Pending() {
		return Event{}, false
	}
	ev := p.events[p.pos]
	p.pos++
	return ev, true
}

func keystrokes(s string) []Event {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	evs := make([]Event, 0, len(s))
	for _, r := range s {
		if r == '\n' {
			evs = append(evs, Event{Key: KeyEnter})
			continue
		}
		evs = append(evs, Rune(r))
	}
	return evs
}
