package ui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poly-cli/poly/internal/extension/ppm"
	"github.com/poly-cli/poly/internal/session"
)

// pathVerbs complete their last token against the filesystem.
var pathVerbs = map[string]bool{
	"cd": true, "run": true, "makedir": true, "deldir": true, "remove": true,
	"make": true, "read": true, "move": true, "copy": true, "files": true, "tree": true,
}

var tabSubverbs = []string{"title", "mode", "create", "delete", "export"}

// complete returns full replacement lines for input, sorted.
func (l *Loop) complete(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	fields := strings.Fields(input)
	trailing := strings.HasSuffix(input, " ")
	verb := strings.ToLower(fields[0])

	if len(fields) == 1 && !trailing {
		return withPrefix("", l.verbNames(), fields[0])
	}
	if pathVerbs[verb] {
		base, token := input, ""
		if i := strings.LastIndex(input, " "); i >= 0 {
			base, token = input[:i+1], input[i+1:]
		}
		return completePath(l.ws.Active().Cwd(), base, token)
	}

	switch verb {
	case "tab":
		if len(fields) == 1 || (len(fields) == 2 && !trailing) {
			return withPrefix(fields[0]+" ", tabSubverbs, argAt(fields, 1))
		}
		head, arg := splitAfter(input, 2)
		switch strings.ToLower(fields[1]) {
		case "mode":
			return withPrefix(head, session.ModeNames(), arg)
		case "delete", "export":
			return withPrefix(head, uniq(l.ws.Names()), arg)
		}
	case "ppm":
		if len(fields) == 1 || (len(fields) == 2 && !trailing) {
			return withPrefix(fields[0]+" ", ppm.Subcommands, argAt(fields, 1))
		}
	case "color":
		if len(fields) == 1 || (len(fields) == 2 && !trailing) {
			return withPrefix(fields[0]+" ", session.ColorTargets, argAt(fields, 1))
		}
		if len(fields) == 2 || (len(fields) == 3 && !trailing) {
			head, arg := splitAfter(input, 2)
			return withPrefix(head, session.ColorNames(), arg)
		}
	}
	return nil
}

// verbNames is every dispatchable verb plus alias names.
func (l *Loop) verbNames() []string {
	names := l.eng.Commands()
	for a := range l.eng.Aliases() {
		names = append(names, a)
	}
	return uniq(names)
}

// withPrefix keeps the options starting with token, excluding an exact match,
// each prefixed by head.
func withPrefix(head string, opts []string, token string) []string {
	var out []string
	for _, o := range opts {
		if strings.HasPrefix(o, token) && o != token {
			out = append(out, head+o)
		}
	}
	sort.Strings(out)
	return out
}

func argAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// splitAfter cuts input after its first n whitespace-separated words; the
// remainder is returned untrimmed on the left so names with spaces match.
func splitAfter(input string, n int) (head, rest string) {
	i := 0
	for w := 0; w < n; w++ {
		for i < len(input) && input[i] == ' ' {
			i++
		}
		for i < len(input) && input[i] != ' ' {
			i++
		}
	}
	if i < len(input) {
		i++
	}
	return input[:i], input[i:]
}

// completePath lists entries of the directory named by token (relative to
// cwd) whose names start with token's last element. Directories get a
// trailing separator.
func completePath(cwd, base, token string) []string {
	dirPart, prefix := filepath.Split(token)
	dir := cwd
	switch {
	case dirPart == "":
	case filepath.IsAbs(dirPart):
		dir = dirPart
	case dirPart == "~/" || strings.HasPrefix(dirPart, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dirPart[2:])
		}
	default:
		dir = filepath.Join(cwd, dirPart)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if e.IsDir() {
			name += string(filepath.Separator)
		}
		if name == prefix {
			continue
		}
		out = append(out, base+dirPart+name)
	}
	sort.Strings(out)
	return out
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
