package session

import "strings"

// Mode selects what a session does with submitted input.
type Mode int

const (
	// Interactive runs lines through the poly command engine.
	Interactive Mode = iota
	// ShellWindows bridges to the Windows command processor.
	ShellWindows
	// ShellPowerShell bridges to PowerShell.
	ShellPowerShell
	// ShellPosix bridges to a POSIX shell.
	ShellPosix
)

var modeNames = [...]string{"poly", "win", "pws", "lnx"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// ParseMode accepts poly, win, pws or lnx, case-insensitively.
func ParseMode(s string) (Mode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return Interactive, false
}

// ModeNames lists the accepted mode names in order.
func ModeNames() []string {
	return append([]string(nil), modeNames[:]...)
}
