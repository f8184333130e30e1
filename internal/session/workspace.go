package session

import "sync"

// Workspace is the ordered set of open sessions and the active index.
type Workspace struct {
	mu       sync.Mutex
	sessions []*Session
	active   int
	factory  func(name string) *Session
}

// NewWorkspace returns an empty workspace that builds sessions with factory.
func NewWorkspace(factory func(name string) *Session) *Workspace {
	return &Workspace{factory: factory}
}

// Create appends a new session and makes it active.
func (w *Workspace) Create(name string) *Session {
	s := w.factory(name)
	w.mu.Lock()
	w.sessions = append(w.sessions, s)
	w.active = len(w.sessions) - 1
	w.mu.Unlock()
	return s
}

// Active returns the active session, or nil when none are open.
func (w *Workspace) Active() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.sessions) == 0 {
		return nil
	}
	return w.sessions[w.active]
}

func (w *Workspace) Index() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *Workspace) SetActive(i int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i >= 0 && i < len(w.sessions) {
		w.active = i
	}
}

func (w *Workspace) Next() { w.step(1) }
func (w *Workspace) Prev() { w.step(-1) }

func (w *Workspace) step(d int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n := len(w.sessions); n > 0 {
		w.active = ((w.active+d)%n + n) % n
	}
}

func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

func (w *Workspace) Sessions() []*Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Session(nil), w.sessions...)
}

func (w *Workspace) Names() []string {
	var names []string
	for _, s := range w.Sessions() {
		names = append(names, s.Name())
	}
	return names
}

// Find returns the first session named name.
func (w *Workspace) Find(name string) *Session {
	for _, s := range w.Sessions() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Close stops and removes the session at i.
func (w *Workspace) Close(i int) {
	w.mu.Lock()
	if i < 0 || i >= len(w.sessions) {
		w.mu.Unlock()
		return
	}
	s := w.sessions[i]
	w.sessions = append(w.sessions[:i], w.sessions[i+1:]...)
	if i < w.active {
		w.active--
	}
	w.clamp()
	w.mu.Unlock()
	s.Stop()
}

// CloseNamed stops and removes every session named name and reports how many
// were removed.
func (w *Workspace) CloseNamed(name string) int {
	w.mu.Lock()
	var current *Session
	if len(w.sessions) > 0 {
		current = w.sessions[w.active]
	}
	var keep, gone []*Session
	for _, s := range w.sessions {
		if s.Name() == name {
			gone = append(gone, s)
		} else {
			keep = append(keep, s)
		}
	}
	w.sessions = keep
	for i, s := range keep {
		if s == current {
			w.active = i
		}
	}
	w.clamp()
	w.mu.Unlock()
	for _, s := range gone {
		s.Stop()
	}
	return len(gone)
}

func (w *Workspace) clamp() {
	if w.active >= len(w.sessions) {
		w.active = len(w.sessions) - 1
	}
	if w.active < 0 {
		w.active = 0
	}
}

// StopAll stops every bridge, e.g. on exit.
func (w *Workspace) StopAll() {
	for _, s := range w.Sessions() {
		s.Stop()
	}
}
