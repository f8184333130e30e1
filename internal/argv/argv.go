// Package argv tokenizes command lines.
//
// Quoting follows a small POSIX-like subset:
//   - unquoted spaces, tabs and newlines separate arguments;
//   - single quotes preserve their contents literally;
//   - inside double quotes a backslash escapes only $, `, ", \ and newline;
//   - outside quotes a backslash escapes the following rune.
//
// There is no expansion, globbing or comment handling.
package argv

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrUnterminatedQuote is returned when a quote is opened and never closed.
var ErrUnterminatedQuote = errors.New("unterminated quote")

type scanner struct {
	inSingle bool
	inDouble bool
	esc      bool
}

func (s *scanner) quoted() bool { return s.inSingle || s.inDouble }

// step feeds r through the quoting state machine. It returns the runes that r
// contributes to the logical text and whether r was consumed as syntax.
func (s *scanner) step(r rune) (out []rune, syntax bool) {
	if s.esc {
		s.esc = false
		if s.inDouble {
			switch r {
			case '$', '`', '"', '\\':
				return []rune{r}, false
			case '\n':
				return nil, false
			default:
				return []rune{'\\', r}, false
			}
		}
		if r == '\n' {
			return nil, false
		}
		return []rune{r}, false
	}
	switch r {
	case '\\':
		if s.inSingle {
			return []rune{r}, false
		}
		s.esc = true
		return nil, true
	case '\'':
		if s.inDouble {
			return []rune{r}, false
		}
		s.inSingle = !s.inSingle
		return nil, true
	case '"':
		if s.inSingle {
			return []rune{r}, false
		}
		s.inDouble = !s.inDouble
		return nil, true
	}
	return []rune{r}, false
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

// Split parses s into arguments.
func Split(s string) ([]string, error) {
	var (
		sc      scanner
		out     []string
		buf     strings.Builder
		inToken bool
	)
	for _, r := range s {
		if !sc.esc && !sc.quoted() && isSpace(r) {
			if inToken {
				out = append(out, buf.String())
				buf.Reset()
				inToken = false
			}
			continue
		}
		text, _ := sc.step(r)
		inToken = true
		for _, t := range text {
			buf.WriteRune(t)
		}
	}
	if sc.quoted() {
		return nil, ErrUnterminatedQuote
	}
	if sc.esc {
		buf.WriteRune('\\')
	}
	if inToken {
		out = append(out, buf.String())
	}
	return out, nil
}

// Dequote removes quoting and escapes from s while keeping unquoted
// whitespace, including newlines, exactly as written.
func Dequote(s string) (string, error) {
	var (
		sc  scanner
		buf strings.Builder
	)
	for _, r := range s {
		if !sc.esc && !sc.quoted() && isSpace(r) {
			buf.WriteRune(r)
			continue
		}
		text, _ := sc.step(r)
		for _, t := range text {
			buf.WriteRune(t)
		}
	}
	if sc.quoted() {
		return "", ErrUnterminatedQuote
	}
	if sc.esc {
		buf.WriteRune('\\')
	}
	return buf.String(), nil
}

// Cut splits s around every occurrence of op that is not inside quotes or
// escaped. The parts are returned untrimmed. An unterminated quote simply
// extends to the end of s; reporting it is left to Split or Dequote.
func Cut(s, op string) []string {
	if op == "" {
		return []string{s}
	}
	var (
		sc    scanner
		parts []string
		start int
	)
	for i := 0; i < len(s); {
		if !sc.esc && !sc.quoted() && strings.HasPrefix(s[i:], op) {
			parts = append(parts, s[start:i])
			i += len(op)
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		sc.step(r)
		i += size
	}
	return append(parts, s[start:])
}

// Verb splits a line into its first whitespace-delimited token and the
// remainder, with the separating whitespace removed.
func Verb(line string) (verb, rest string) {
	line = strings.TrimLeft(line, " \t")
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimLeft(line[i+1:], " \t")
}

// Escape backslash-escapes backslashes and quote characters so that s
// survives Split or Dequote unchanged.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `'`, `\'`)
	return r.Replace(s)
}
