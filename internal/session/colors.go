package session

import (
	"strconv"
	"strings"
)

// ColorTargets are the UI elements a session can recolor.
var ColorTargets = []string{"header", "sidebar", "selected", "messages", "prompt", "ghost"}

// namedColors maps color names to ANSI palette indexes.
var namedColors = map[string]string{
	"black":   "0",
	"red":     "1",
	"green":   "2",
	"yellow":  "3",
	"blue":    "4",
	"magenta": "5",
	"cyan":    "6",
	"white":   "7",
	"gray":    "8",
	"grey":    "8",
	"orange":  "208",
	"pink":    "213",
	"purple":  "99",
}

// ColorNames lists the accepted color names.
func ColorNames() []string {
	return []string{"black", "blue", "cyan", "gray", "green", "magenta", "orange", "pink", "purple", "red", "white", "yellow"}
}

// NormalizeColor accepts a color name, an ANSI index 0-255 or #rrggbb and
// returns the value to style with.
func NormalizeColor(c string) (string, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	if v, ok := namedColors[c]; ok {
		return v, true
	}
	if n, err := strconv.Atoi(c); err == nil && n >= 0 && n <= 255 {
		return c, true
	}
	if len(c) == 7 && c[0] == '#' {
		if _, err := strconv.ParseUint(c[1:], 16, 32); err == nil {
			return c, true
		}
	}
	return "", false
}

// IsColorTarget reports whether t names a recolorable element.
func IsColorTarget(t string) bool {
	for _, v := range ColorTargets {
		if v == t {
			return true
		}
	}
	return false
}
