package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/poly-cli/poly/internal/session"
)

var (
	sHeader  = lipgloss.NewStyle().Bold(true)
	sSidebar = lipgloss.NewStyle()
	sActive  = lipgloss.NewStyle().Reverse(true)
	sRule    = lipgloss.NewStyle().Faint(true)
	sPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Bold(true)
	sGhost   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)
	sCursor  = lipgloss.NewStyle().Reverse(true)
	sHint    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sHintSel = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
)

// style applies the session's color override for target.
func (l *Loop) style(s *session.Session, target string, base lipgloss.Style) lipgloss.Style {
	if s == nil {
		return base
	}
	if c := s.Colors()[target]; c != "" {
		return base.Foreground(lipgloss.Color(c))
	}
	return base
}

// paneHeight is the number of buffer lines visible: everything but the
// header, the rule, the hint line and the prompt.
func (l *Loop) paneHeight() int {
	return max(l.height-4, 1)
}

func (l *Loop) mainWidth() int {
	return max(l.width-l.sidebar-1, 1)
}

// wrapped is s's buffer hard-wrapped to the pane width.
func (l *Loop) wrapped(s *session.Session) []string {
	w := l.mainWidth()
	var out []string
	for _, line := range s.Lines() {
		line = strings.ReplaceAll(line, "\t", "    ")
		out = append(out, strings.Split(ansi.Hardwrap(line, w, true), "\n")...)
	}
	return out
}

// View renders the whole frame.
func (l *Loop) View() string {
	s := l.ws.Active()
	rows := make([]string, 0, l.height)
	rows = append(rows, l.header(s), l.rule())

	bodyH := max(l.height-2, 2)
	side := l.sidebarRows(s, bodyH)
	body := append(l.pane(s), l.hint(s), l.prompt(s))
	bar := sRule.Render("│")
	for i := 0; i < bodyH; i++ {
		right := ""
		if i < len(body) {
			right = body[i]
		}
		rows = append(rows, side[i]+bar+right)
	}
	return strings.Join(rows, "\n")
}

func (l *Loop) header(s *session.Session) string {
	left := "Poly"
	clock := l.now().Format("15:04:05")
	right := l.user + "@" + l.host

	lw, cw, rw := len(left), len(clock), runewidth.StringWidth(right)
	gap1 := max((l.width-cw)/2-lw, 1)
	gap2 := max(l.width-lw-gap1-cw-rw, 1)
	line := left + strings.Repeat(" ", gap1) + clock + strings.Repeat(" ", gap2) + right
	return l.style(s, "header", sHeader).Render(ansi.Truncate(line, l.width, ""))
}

func (l *Loop) rule() string {
	if l.sidebar >= l.width {
		return sRule.Render(strings.Repeat("─", l.width))
	}
	return sRule.Render(strings.Repeat("─", l.sidebar) + "┬" + strings.Repeat("─", l.width-l.sidebar-1))
}

// sidebarRows lists session names, truncated with "..." to the sidebar
// width, the active one reversed.
func (l *Loop) sidebarRows(s *session.Session, n int) []string {
	w := l.sidebar
	active := l.ws.Index()
	base := l.style(s, "sidebar", sSidebar)
	sel := l.style(s, "selected", sActive)
	rows := make([]string, n)
	sessions := l.ws.Sessions()
	for i := range rows {
		if i >= len(sessions) {
			rows[i] = strings.Repeat(" ", w)
			continue
		}
		name := sessions[i].Name()
		if runewidth.StringWidth(name) > w {
			name = runewidth.Truncate(name, w, "...")
		}
		name = runewidth.FillRight(name, w)
		if i == active {
			rows[i] = sel.Render(name)
		} else {
			rows[i] = base.Render(name)
		}
	}
	return rows
}

// pane is the window of wrapped buffer lines ending scroll lines above the
// bottom, padded at the top to the pane height.
func (l *Loop) pane(s *session.Session) []string {
	h := l.paneHeight()
	rows := make([]string, h)
	if s == nil {
		return rows
	}
	lines := l.wrapped(s)
	scroll := s.ScrollBy(0, len(lines)-h)
	end := len(lines) - scroll
	start := max(end-h, 0)
	window := lines[start:end]
	st := l.style(s, "messages", lipgloss.NewStyle())
	off := h - len(window)
	for i, line := range window {
		rows[off+i] = st.Render(line)
	}
	return rows
}

func (l *Loop) hint(s *session.Session) string {
	if len(l.suggestions) > 0 {
		head := l.input[:strings.LastIndex(l.input, " ")+1]
		parts := make([]string, len(l.suggestions))
		for i, sug := range l.suggestions {
			label := strings.TrimPrefix(sug, head)
			if i == l.selected {
				parts[i] = sHintSel.Render(label)
			} else {
				parts[i] = sHint.Render(label)
			}
		}
		return ansi.Truncate(strings.Join(parts, sHint.Render("  ")), l.mainWidth(), "…")
	}
	if s == nil {
		return ""
	}
	status := fmt.Sprintf("%s │ %d/%d │ Tab switch · Ctrl+T new · Ctrl+W close", s.Mode(), l.ws.Index()+1, l.ws.Len())
	if l.Replaying() {
		status = "replaying " + l.playback.Name() + " │ " + status
	}
	return sHint.Render(ansi.Truncate(status, l.mainWidth(), "…"))
}

// prompt renders "cwd > input" with the selected suggestion's remainder as
// ghost text. The cwd is cut from the left to at most 30% of the pane.
func (l *Loop) prompt(s *session.Session) string {
	if s == nil {
		return ""
	}
	cwd := truncateLeft(s.Cwd(), max(l.mainWidth()*3/10, 1))
	text := cwd + " > " + l.input
	ghost := ""
	if len(l.suggestions) > 0 {
		if full := l.suggestions[l.selected]; strings.HasPrefix(full, l.input) {
			ghost = full[len(l.input):]
		}
	}
	cursor := " "
	if ghost != "" {
		r := []rune(ghost)
		cursor, ghost = string(r[0]), string(r[1:])
	}
	out := l.style(s, "prompt", sPrompt).Render(text) +
		sCursor.Render(cursor) +
		l.style(s, "ghost", sGhost).Render(ghost)
	return ansi.Truncate(out, l.mainWidth(), "")
}

// truncateLeft keeps the tail of s that fits in w cells, marking the cut
// with "...".
func truncateLeft(s string, w int) string {
	if runewidth.StringWidth(s) <= w {
		return s
	}
	if w <= 3 {
		return strings.Repeat(".", w)
	}
	r := []rune(s)
	width := 0
	i := len(r)
	for i > 0 {
		rw := runewidth.RuneWidth(r[i-1])
		if width+rw > w-3 {
			break
		}
		width += rw
		i--
	}
	return "..." + string(r[i:])
}
