package builtin

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/charmbracelet/glamour"
	"github.com/gabriel-vasile/mimetype"

	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/errs"
)

const maxDump = 64 << 10 // bytes shown by the hex viewer

// maxTreeItems caps the entries tree lists; the walk stops once it is hit.
var maxTreeItems = 2000

func (b *builtins) registerFiles(e *engine.Engine) {
	b.add(e, "makedir", "makedir <path>", b.makedir)
	b.add(e, "deldir", "deldir <path>", b.deldir)
	b.add(e, "remove", "remove <path>", b.remove)
	b.add(e, "make", "make <path>", b.makeFile)
	b.add(e, "read", "read <path>", b.read)
	b.add(e, "move", "move <src> <dst>", b.move)
	b.add(e, "copy", "copy <src> <dst>", b.copy)
	b.add(e, "files", "files [path|glob]", b.files)
	b.add(e, "tree", "tree [path]", b.tree)
}

// fsErr classifies an OS error for op.
func fsErr(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errs.NotFound(op, path)
	}
	return errs.Env(op, err)
}

func (b *builtins) makedir(c *engine.Call) error {
	p, err := b.path(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Session.Resolve(p), 0o755); err != nil {
		return errs.Env("makedir", err)
	}
	c.Session.Add("Created directory " + p)
	return nil
}

func (b *builtins) deldir(c *engine.Call) error {
	p, err := b.path(c)
	if err != nil {
		return err
	}
	full := c.Session.Resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return fsErr("deldir", p, err)
	}
	if !info.IsDir() {
		return errs.Usagef("deldir", "%s is not a directory", p)
	}
	if full == filepath.Dir(full) {
		return errs.Usagef("deldir", "refusing to delete %s", full)
	}
	s := c.Session
	s.Go(func() {
		if err := os.RemoveAll(full); err != nil {
			s.Add(errs.Env("deldir", err).Error())
			return
		}
		s.Add("Deleted directory " + p)
	})
	return nil
}

func (b *builtins) remove(c *engine.Call) error {
	p, err := b.path(c)
	if err != nil {
		return err
	}
	full := c.Session.Resolve(p)
	info, err := os.Lstat(full)
	if err != nil {
		return fsErr("remove", p, err)
	}
	if info.IsDir() {
		return errs.Usagef("remove", "%s is a directory, use deldir", p)
	}
	if err := os.Remove(full); err != nil {
		return errs.Env("remove", err)
	}
	c.Session.Add("Removed " + p)
	return nil
}

func (b *builtins) makeFile(c *engine.Call) error {
	p, err := b.path(c)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(c.Session.Resolve(p), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fsErr("make", p, err)
	}
	if err := f.Close(); err != nil {
		return errs.Env("make", err)
	}
	c.Session.Add("Created " + p)
	return nil
}

// read shows text files as-is, Markdown rendered, and anything else as a hex
// dump.
func (b *builtins) read(c *engine.Call) error {
	p, err := b.path(c)
	if err != nil {
		return err
	}
	full := c.Session.Resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return fsErr("read", p, err)
	}
	if info.IsDir() {
		return errs.Usagef("read", "%s is a directory", p)
	}

	mtype, err := mimetype.DetectFile(full)
	if err != nil {
		return errs.Env("read", err)
	}
	if !isText(mtype.String()) {
		return dump(c, full, info.Size())
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return errs.Env("read", err)
	}
	text := string(data)
	if ext := strings.ToLower(filepath.Ext(full)); ext == ".md" || ext == ".markdown" {
		if out, err := glamour.Render(text, "dark"); err == nil {
			text = strings.TrimRight(out, "\n")
		}
	}
	c.Session.Add(text)
	return nil
}

func isText(m string) bool {
	return strings.HasPrefix(m, "text/") ||
		strings.HasPrefix(m, "application/json") ||
		strings.HasPrefix(m, "application/xml") ||
		strings.HasPrefix(m, "application/javascript")
}

func dump(c *engine.Call, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Env("read", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxDump))
	if err != nil {
		return errs.Env("read", err)
	}
	c.Session.Add(hex.Dump(data))
	if size > maxDump {
		c.Session.Add(fmt.Sprintf("... (%d of %d bytes shown)", maxDump, size))
	}
	return nil
}

func (b *builtins) move(c *engine.Call) error {
	src, dst, err := b.two(c)
	if err != nil {
		return err
	}
	from, to := c.Session.Resolve(src), c.Session.Resolve(dst)
	if info, err := os.Stat(to); err == nil && info.IsDir() {
		to = filepath.Join(to, filepath.Base(from))
	}
	if err := os.Rename(from, to); err != nil {
		return fsErr("move", src, err)
	}
	c.Session.Add(fmt.Sprintf("Moved %s to %s", src, dst))
	return nil
}

func (b *builtins) copy(c *engine.Call) error {
	src, dst, err := b.two(c)
	if err != nil {
		return err
	}
	from, to := c.Session.Resolve(src), c.Session.Resolve(dst)
	info, err := os.Stat(from)
	if err != nil {
		return fsErr("copy", src, err)
	}
	if dinfo, err := os.Stat(to); err == nil && dinfo.IsDir() {
		to = filepath.Join(to, filepath.Base(from))
	}
	if info.IsDir() {
		err = copyDir(from, to)
	} else {
		err = copyFile(from, to, info.Mode().Perm())
	}
	if err != nil {
		return errs.Env("copy", err)
	}
	c.Session.Add(fmt.Sprintf("Copied %s to %s", src, dst))
	return nil
}

func copyFile(from, to string, perm fs.FileMode) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyDir mirrors from into to. fastwalk visits a directory before its
// children, so each directory exists before its files are written.
func copyDir(from, to string) error {
	if rel, err := filepath.Rel(from, to); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("cannot copy %s into itself", from)
	}
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, from, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, target, info.Mode().Perm())
	})
}

// files lists a directory, or expands a doublestar glob when the argument
// contains pattern characters.
func (b *builtins) files(c *engine.Call) error {
	arg, err := c.Text()
	if err != nil {
		return err
	}
	arg = strings.TrimSpace(arg)
	if arg == "" {
		arg = "."
	}
	if strings.ContainsAny(arg, "*?[{") {
		base := c.Session.Cwd()
		pattern := arg
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(base, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return errs.Usagef("files", "bad pattern %q: %v", arg, err)
		}
		if len(matches) == 0 {
			c.Session.Add("No matches for " + arg)
			return nil
		}
		for _, m := range matches {
			if rel, err := filepath.Rel(base, m); err == nil && !strings.HasPrefix(rel, "..") {
				m = rel
			}
			c.Session.Add(m)
		}
		return nil
	}

	entries, err := os.ReadDir(c.Session.Resolve(arg))
	if err != nil {
		return fsErr("files", arg, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += string(filepath.Separator)
		}
		c.Session.Add(name)
	}
	return nil
}

func (b *builtins) tree(c *engine.Call) error {
	arg, err := c.Text()
	if err != nil {
		return err
	}
	arg = strings.TrimSpace(arg)
	if arg == "" {
		arg = "."
	}
	root := c.Session.Resolve(arg)
	info, err := os.Stat(root)
	if err != nil {
		return fsErr("tree", arg, err)
	}
	if !info.IsDir() {
		return errs.Usagef("tree", "%s is not a directory", arg)
	}

	type node struct {
		rel string
		dir bool
	}
	var (
		mu    sync.Mutex
		nodes []node
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == root {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		mu.Lock()
		defer mu.Unlock()
		if len(nodes) >= maxTreeItems {
			return fs.SkipAll
		}
		nodes = append(nodes, node{rel: rel, dir: d.IsDir()})
		return nil
	})
	truncated := errors.Is(err, fs.SkipAll)
	if err != nil && !truncated {
		return errs.Env("tree", err)
	}
	sort.Slice(nodes, func(i, j int) bool { return lessPath(nodes[i].rel, nodes[j].rel) })

	lines := []string{filepath.Base(root) + string(filepath.Separator)}
	for _, n := range nodes {
		depth := strings.Count(n.rel, string(filepath.Separator))
		name := filepath.Base(n.rel)
		if n.dir {
			name += string(filepath.Separator)
		}
		lines = append(lines, strings.Repeat("  ", depth+1)+name)
	}
	if truncated {
		lines = append(lines, "... (truncated)")
	}
	c.Session.Add(strings.Join(lines, "\n"))
	return nil
}

// lessPath orders paths component by component so children follow their
// parent directly.
func lessPath(a, b string) bool {
	pa := strings.Split(a, string(filepath.Separator))
	pb := strings.Split(b, string(filepath.Separator))
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}
