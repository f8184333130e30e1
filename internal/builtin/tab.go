package builtin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poly-cli/poly/internal/argv"
	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/session"
)

// DefaultTabName names sessions created without a title.
const DefaultTabName = "New Tab"

func (b *builtins) registerSessions(e *engine.Engine) {
	b.add(e, "tab", "tab title <t> | mode <m> | create [t] | delete <t> | export [t]", b.tab)
	b.add(e, "cd", "cd <path>", func(c *engine.Call) error {
		p, err := b.path(c)
		if err != nil {
			return err
		}
		// Cd reports its own failure line.
		_ = c.Session.Cd(p)
		return nil
	})
	b.add(e, "cwd", "cwd", func(c *engine.Call) error {
		c.Session.Add(c.Session.Cwd())
		return nil
	})
	b.add(e, "clear", "clear", func(c *engine.Call) error {
		c.Session.Clear()
		return nil
	})
	b.add(e, "history", "history", func(c *engine.Call) error {
		for i, h := range c.Session.History() {
			c.Session.Add(fmt.Sprintf("%4d  %s", i+1, h))
		}
		return nil
	})
	b.add(e, "color", "color <target> <color>", b.color)
}

func (b *builtins) tab(c *engine.Call) error {
	ws := c.Engine.Workspace()
	sub, arg := argv.Verb(c.Rest)
	switch strings.ToLower(sub) {
	case "title":
		if arg == "" {
			return b.usage("tab")
		}
		c.Session.Rename(arg)
	case "mode":
		if arg == "" {
			return b.usage("tab")
		}
		m, ok := session.ParseMode(arg)
		if !ok {
			c.Session.Add("Invalid mode: " + arg)
			return nil
		}
		// SetMode reports spawn failures itself.
		_ = c.Session.SetMode(m)
	case "create":
		if arg == "" {
			arg = DefaultTabName
		}
		ws.Create(arg)
	case "delete":
		if arg == "" {
			return b.usage("tab")
		}
		if ws.CloseNamed(arg) == 0 {
			c.Session.Add(fmt.Sprintf("No tabs named '%s'", arg))
		}
	case "export":
		target := c.Session
		if arg != "" {
			if target = ws.Find(arg); target == nil {
				c.Session.Add(fmt.Sprintf("No tabs named '%s'", arg))
				return nil
			}
		}
		path, err := b.export(target)
		if err != nil {
			target.Add("Export failed: " + err.Error())
			return nil
		}
		target.Add("Exported to " + path)
	default:
		return b.usage("tab")
	}
	return nil
}

// export writes the session buffer to <dir>/<name>-<timestamp>.txt where dir
// is the configured export directory or the session's working directory.
func (b *builtins) export(s *session.Session) (string, error) {
	dir := b.Config.ExportDir
	if dir == "" {
		dir = s.Cwd()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' || r == ':' {
			return '_'
		}
		return r
	}, s.Name())
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.txt", name, b.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, []byte(strings.Join(s.Lines(), "\n")), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (b *builtins) color(c *engine.Call) error {
	target, value, err := b.two(c)
	if err != nil {
		return err
	}
	target = strings.ToLower(target)
	if !session.IsColorTarget(target) {
		return b.usage("color")
	}
	v, ok := session.NormalizeColor(value)
	if !ok {
		c.Session.Add("Unknown color: " + value)
		return nil
	}
	c.Session.SetColor(target, v)
	return nil
}
