package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/poly-cli/poly/internal/argv"
	"github.com/poly-cli/poly/internal/engine"
)

func (b *builtins) registerMeta(e *engine.Engine) {
	exit := func(c *engine.Call) error {
		c.Exit()
		return nil
	}
	b.add(e, "exit", "exit", exit)
	b.add(e, "quit", "quit", exit)
	b.add(e, "echo", "echo <text>", func(c *engine.Call) error {
		text, err := c.Text()
		if err != nil {
			return err
		}
		c.Session.Add(text)
		return nil
	})
	b.add(e, "alias", "alias <from> <to>", b.alias)
	b.add(e, "variable", "variable <name> <value>", b.variable)
	b.add(e, "aliases", "aliases", func(c *engine.Call) error {
		listMap(c, c.Engine.Aliases(), "No aliases defined.")
		return nil
	})
	b.add(e, "variables", "variables", func(c *engine.Call) error {
		listMap(c, c.Engine.Vars(), "No variables defined.")
		return nil
	})
	b.add(e, "plugins", "plugins", b.plugins)
	b.add(e, "help", "help", b.helpCmd)
}

func (b *builtins) alias(c *engine.Call) error {
	from, to := argv.Verb(c.Rest)
	if from == "" || to == "" {
		return b.usage("alias")
	}
	c.Engine.DefineAlias(from, to)
	return nil
}

func (b *builtins) variable(c *engine.Call) error {
	name, rest := argv.Verb(c.Rest)
	if name == "" || rest == "" {
		return b.usage("variable")
	}
	value, err := argv.Dequote(rest)
	if err != nil {
		return b.usage("variable")
	}
	c.Engine.SetVar(name, value)
	return nil
}

func listMap(c *engine.Call, m map[string]string, empty string) {
	if len(m) == 0 {
		c.Session.Add(empty)
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.Session.Add(fmt.Sprintf("%s = %s", k, m[k]))
	}
}

func (b *builtins) plugins(c *engine.Call) error {
	if b.Extensions == nil {
		c.Session.Add("No extensions loaded.")
		return nil
	}
	loaded := b.Extensions.Loaded()
	if len(loaded) == 0 {
		c.Session.Add("No extensions loaded.")
	} else {
		c.Session.Add("Loaded: " + strings.Join(loaded, ", "))
	}
	for _, f := range b.Extensions.Faults() {
		c.Session.Add("Fault: " + f.String())
	}
	return nil
}

func (b *builtins) helpCmd(c *engine.Call) error {
	c.Session.Add("Builtins:")
	for _, v := range b.verbs() {
		c.Session.Add("  " + b.help[v])
	}
	var ext []string
	for _, v := range c.Engine.Commands() {
		if _, ok := b.help[v]; !ok {
			ext = append(ext, v)
		}
	}
	if len(ext) > 0 {
		c.Session.Add("Extensions: " + strings.Join(ext, " "))
	}
	c.Session.Add("Operators: a && b (chain), a | b (pipe), {name} (variable)")
	return nil
}
