// Package ppm is the bundled plugin manager. It installs Lua and JavaScript
// extensions from a manifest repository, verifying each file's SHA-256, and
// manages what is already in the plugin directory.
//
// A repository is a base URL serving plugins.json:
//
//	{"plugins": {"hello": {"file": "hello.lua", "sha256": "…", "version": "1.0",
//	                       "description": "…", "author": "…"}}}
//
// Plugin files are fetched relative to the same base URL.
package ppm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/poly-cli/poly/internal/errs"
	"github.com/poly-cli/poly/internal/extension"
)

const (
	ManifestFile   = "plugins.json"
	disabledSuffix = ".disabled"
)

// Subcommands lists the ppm subcommands in help order.
var Subcommands = []string{"install", "uninstall", "update", "list", "search", "info", "enable", "disable", "doctor", "help"}

var shorthand = map[string]string{"i": "install", "un": "uninstall", "up": "update", "ls": "list"}

// pluginExts are the file types the extension loaders pick up.
var pluginExts = []string{".lua", ".js"}

type Plugin struct {
	File        string `json:"file"`
	SHA256      string `json:"sha256"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

type Manifest struct {
	Plugins map[string]Plugin `json:"plugins"`
}

// names returns the manifest's plugin names, sorted.
func (m *Manifest) names() []string {
	names := make([]string, 0, len(m.Plugins))
	for n := range m.Plugins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type worker interface {
	Go(fn func())
}

type Provider struct {
	client *resty.Client
	dir    string
	repo   string
	now    func() time.Time
}

// New manages plugins in dir. repo is the repository base URL; when empty
// only the local subcommands work. A nil client gets a default one.
func New(client *resty.Client, dir, repo string) *Provider {
	if client == nil {
		client = resty.New()
	}
	return &Provider{client: client, dir: dir, repo: repo, now: time.Now}
}

func (p *Provider) ID() string { return "go:ppm" }

func (p *Provider) Register(r extension.Registrar) error {
	r.DefineCommand("ppm", p.command, nil)
	return nil
}

func (p *Provider) command(s extension.Session, _ []string, rest string) error {
	parts := strings.Fields(rest)
	if len(parts) == 0 {
		help(s)
		return nil
	}
	sub := strings.ToLower(parts[0])
	if full, ok := shorthand[sub]; ok {
		sub = full
	}
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch sub {
	case "help":
		help(s)
	case "list":
		if arg == "-i" {
			p.listInstalled(s)
			return nil
		}
		p.remote(s, func() {
			s.Add("Available plugins from repository:")
			p.listAvailable(s, "")
		})
	case "search":
		if arg == "" {
			return errs.Usagef("ppm search", "<keyword>")
		}
		p.remote(s, func() { p.listAvailable(s, arg) })
	case "info":
		if arg == "" {
			return errs.Usagef("ppm info", "<plugin_name>")
		}
		p.remote(s, func() { p.info(s, arg) })
	case "install":
		if arg == "" {
			return errs.Usagef("ppm install", "<plugin_name>")
		}
		p.remote(s, func() { p.install(s, arg, false) })
	case "update":
		if arg == "" {
			return errs.Usagef("ppm update", "<plugin_name|--all>")
		}
		p.remote(s, func() { p.update(s, arg) })
	case "uninstall":
		if arg == "" {
			return errs.Usagef("ppm uninstall", "<plugin_name>")
		}
		return p.uninstall(s, arg)
	case "enable":
		if arg == "" {
			return errs.Usagef("ppm enable", "<plugin_name>")
		}
		return p.enable(s, arg)
	case "disable":
		if arg == "" {
			return errs.Usagef("ppm disable", "<plugin_name>")
		}
		return p.disable(s, arg)
	case "doctor":
		background(s, func() { p.doctor(s) })
	default:
		s.Add("Unknown command: " + sub)
		help(s)
	}
	return nil
}

func help(s extension.Session) {
	s.Add(`Poly Package Manager (PPM) - Help
Usage: ppm <command> [options]

Commands:
  install (i) <plugin_name>    - Installs a plugin from the repository.
  uninstall (un) <plugin_name> - Uninstalls a plugin.
  update (up) <plugin|--all>   - Updates one or all installed plugins.
  list (ls) [-i]               - Lists available or installed plugins.
  search <keyword>             - Searches for plugins by keyword.
  info <plugin_name>           - Shows detailed information about a plugin.
  enable <plugin_name>         - Enables an installed plugin.
  disable <plugin_name>        - Disables an installed plugin.
  doctor                       - Checks for potential issues.
  help                         - Shows this help message.`)
}

func background(s extension.Session, fn func()) {
	if w, ok := s.(worker); ok {
		w.Go(fn)
		return
	}
	fn()
}

// remote runs fn in the background when a repository is configured.
func (p *Provider) remote(s extension.Session, fn func()) {
	if p.repo == "" {
		s.Add("ppm: no plugin repository configured (set plugin_repo)")
		return
	}
	background(s, fn)
}

func (p *Provider) url(file string) string {
	return strings.TrimRight(p.repo, "/") + "/" + strings.TrimLeft(file, "/")
}

// fetchManifest reports its own failures and returns nil on any of them.
func (p *Provider) fetchManifest(s extension.Session) *Manifest {
	resp, err := p.client.R().
		SetHeader("Cache-Control", "no-cache, no-store, must-revalidate").
		SetHeader("Pragma", "no-cache").
		SetQueryParam("_", strconv.FormatInt(p.now().Unix(), 10)).
		Get(p.url(ManifestFile))
	if err != nil {
		s.Add("Error: Could not fetch plugin manifest. " + err.Error())
		return nil
	}
	if resp.IsError() {
		s.Add(fmt.Sprintf("Error: Could not fetch plugin manifest. HTTP %d", resp.StatusCode()))
		return nil
	}
	var m Manifest
	if err := json.Unmarshal(resp.Body(), &m); err != nil {
		s.Add("Error: Could not parse plugin manifest.")
		return nil
	}
	return &m
}

func (p *Provider) listAvailable(s extension.Session, keyword string) {
	m := p.fetchManifest(s)
	if m == nil {
		return
	}
	keyword = strings.ToLower(keyword)
	var lines []string
	for _, name := range m.names() {
		info := m.Plugins[name]
		if keyword != "" && !strings.Contains(strings.ToLower(name), keyword) &&
			!strings.Contains(strings.ToLower(info.Description), keyword) {
			continue
		}
		lines = append(lines, fmt.Sprintf("  - %s (v%s): %s", name, or(info.Version, "N/A"), or(info.Description, "No description")))
	}
	switch {
	case len(lines) > 0:
		s.Add(strings.Join(lines, "\n"))
	case keyword != "":
		s.Add("No plugins found matching your search.")
	default:
		s.Add("  No plugins found in the repository.")
	}
}

func (p *Provider) info(s extension.Session, name string) {
	m := p.fetchManifest(s)
	if m == nil {
		return
	}
	info, ok := m.Plugins[name]
	if !ok {
		s.Add(fmt.Sprintf("Error: Plugin '%s' not found in the repository.", name))
		return
	}
	s.Add(fmt.Sprintf("--- Plugin Information: %s ---", name))
	s.Add("  Version:     " + or(info.Version, "N/A"))
	s.Add("  Author:      " + or(info.Author, "N/A"))
	s.Add("  Description: " + or(info.Description, "No description provided."))
	s.Add("  File:        " + or(info.File, "N/A"))
	s.Add("  SHA256:      " + or(info.SHA256, "N/A"))
}

// install downloads name, checks its hash and writes it into the plugin
// directory. An existing file is only replaced when replace is set.
func (p *Provider) install(s extension.Session, name string, replace bool) {
	m := p.fetchManifest(s)
	if m == nil {
		return
	}
	p.installFrom(s, m, name, replace)
}

func (p *Provider) installFrom(s extension.Session, m *Manifest, name string, replace bool) {
	info, ok := m.Plugins[name]
	if !ok {
		s.Add(fmt.Sprintf("Error: Plugin '%s' not found in the repository.", name))
		return
	}
	if info.File == "" || info.SHA256 == "" {
		s.Add(fmt.Sprintf("Error: Plugin '%s' is missing 'file' or 'sha256' in manifest.", name))
		return
	}
	dest := filepath.Join(p.dir, path.Base(info.File))
	if !slices.Contains(pluginExts, filepath.Ext(dest)) {
		s.Add(fmt.Sprintf("Error: Plugin '%s' is not a Lua or JavaScript file.", name))
		return
	}
	if !replace && exists(dest) {
		s.Add(fmt.Sprintf("Plugin '%s' is already installed.", name))
		return
	}

	resp, err := p.client.R().Get(p.url(info.File))
	if err != nil {
		s.Add("Error: Could not download plugin file. " + err.Error())
		return
	}
	if resp.IsError() {
		s.Add(fmt.Sprintf("Error: Could not download plugin file. HTTP %d", resp.StatusCode()))
		return
	}
	body := resp.Body()
	if actual := digest(body); !strings.EqualFold(actual, info.SHA256) {
		s.Add("Error: Hash mismatch! The downloaded file may be corrupted or tampered with.")
		s.Add("  Expected: " + info.SHA256)
		s.Add("  Actual:   " + actual)
		return
	}
	s.Add("Hash verification successful.")

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		s.Add("Error: Could not write plugin file. " + err.Error())
		return
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		s.Add("Error: Could not write plugin file. " + err.Error())
		return
	}
	s.Add(fmt.Sprintf("Successfully installed plugin '%s' to %s", name, dest))
	s.Add("Please restart Poly to load the new plugin.")
}

func (p *Provider) update(s extension.Session, name string) {
	m := p.fetchManifest(s)
	if m == nil {
		return
	}
	if name != "--all" {
		p.installFrom(s, m, name, true)
		return
	}
	var names []string
	for _, in := range p.installed() {
		if in.enabled {
			names = append(names, in.name)
		}
	}
	if len(names) == 0 {
		s.Add("No plugins to update.")
		return
	}
	for _, n := range names {
		p.installFrom(s, m, n, true)
	}
}

type installedPlugin struct {
	name    string
	file    string
	enabled bool
}

// installed lists plugin files in the directory, enabled or disabled, in
// file name order.
func (p *Provider) installed() []installedPlugin {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil
	}
	var out []installedPlugin
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base, enabled := e.Name(), true
		if strings.HasSuffix(base, disabledSuffix) {
			base, enabled = strings.TrimSuffix(base, disabledSuffix), false
		}
		ext := filepath.Ext(base)
		if !slices.Contains(pluginExts, ext) {
			continue
		}
		out = append(out, installedPlugin{name: strings.TrimSuffix(base, ext), file: e.Name(), enabled: enabled})
	}
	return out
}

func (p *Provider) listInstalled(s extension.Session) {
	lines := []string{"Installed plugins:"}
	for _, in := range p.installed() {
		state := "enabled"
		if !in.enabled {
			state = "disabled"
		}
		lines = append(lines, fmt.Sprintf("  - %s (%s)", in.name, state))
	}
	if len(lines) == 1 {
		lines = append(lines, "  No plugins installed.")
	}
	s.Add(strings.Join(lines, "\n"))
}

// locate finds name's plugin file. Enabled files win over disabled ones.
func (p *Provider) locate(name string) (file string, enabled, ok bool) {
	for _, want := range []bool{true, false} {
		for _, in := range p.installed() {
			if in.name == name && in.enabled == want {
				return filepath.Join(p.dir, in.file), in.enabled, true
			}
		}
	}
	return "", false, false
}

func (p *Provider) enable(s extension.Session, name string) error {
	file, enabled, ok := p.locate(name)
	switch {
	case !ok:
		s.Add(fmt.Sprintf("Plugin '%s' is not installed or not disabled.", name))
		return nil
	case enabled:
		s.Add(fmt.Sprintf("Plugin '%s' is already enabled.", name))
		return nil
	}
	if err := os.Rename(file, strings.TrimSuffix(file, disabledSuffix)); err != nil {
		return errs.Env("ppm enable", err)
	}
	s.Add(fmt.Sprintf("Plugin '%s' enabled successfully.", name))
	s.Add("Please restart Poly to load the plugin.")
	return nil
}

func (p *Provider) disable(s extension.Session, name string) error {
	file, enabled, ok := p.locate(name)
	switch {
	case !ok:
		s.Add(fmt.Sprintf("Plugin '%s' is not installed.", name))
		return nil
	case !enabled:
		s.Add(fmt.Sprintf("Plugin '%s' is already disabled.", name))
		return nil
	}
	if err := os.Rename(file, file+disabledSuffix); err != nil {
		return errs.Env("ppm disable", err)
	}
	s.Add(fmt.Sprintf("Plugin '%s' disabled successfully.", name))
	s.Add("Please restart Poly for the change to take effect.")
	return nil
}

func (p *Provider) uninstall(s extension.Session, name string) error {
	file, _, ok := p.locate(name)
	if !ok {
		s.Add(fmt.Sprintf("Error: Plugin '%s' is not installed.", name))
		return nil
	}
	if err := os.Remove(file); err != nil {
		return errs.Env("ppm uninstall", err)
	}
	s.Add(fmt.Sprintf("Successfully uninstalled plugin '%s'.", name))
	s.Add("Please restart Poly for the change to take effect.")
	return nil
}

func (p *Provider) doctor(s extension.Session) {
	s.Add("--- Running PPM Doctor ---")
	issues := 0

	s.Add("Checking plugin directory: " + p.dir)
	info, err := os.Stat(p.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.Add("  [OK] Directory does not exist yet, but will be created on install.")
	case err != nil || !info.IsDir():
		s.Add("  [FAIL] Plugin directory is not a readable directory.")
		issues++
	case !writable(p.dir):
		s.Add("  [FAIL] Plugin directory is not writable.")
		issues++
	default:
		s.Add("  [OK] Plugin directory is writable.")
	}

	if p.repo == "" {
		s.Add("  [WARN] No plugin repository configured, skipping remote checks.")
	} else {
		s.Add("Checking remote manifest...")
		if m := p.fetchManifest(s); m == nil {
			s.Add("  [FAIL] Could not fetch the remote plugin manifest.")
			issues++
		} else {
			s.Add("  [OK] Remote manifest is reachable and valid.")
			issues += p.verify(s, m)
		}
	}

	s.Add("--- Doctor complete ---")
	if issues == 0 {
		s.Add("No issues found. Your PPM setup looks healthy!")
	} else {
		s.Add(fmt.Sprintf("Found %d issue(s). Please review the log above.", issues))
	}
}

// verify checks every enabled plugin against the manifest and returns the
// number of problems found.
func (p *Provider) verify(s extension.Session, m *Manifest) int {
	s.Add("Verifying installed plugins...")
	issues := 0
	for _, in := range p.installed() {
		if !in.enabled {
			continue
		}
		info, ok := m.Plugins[in.name]
		if !ok {
			s.Add(fmt.Sprintf("  [WARN] Plugin '%s' is orphaned (not in remote manifest).", in.name))
			issues++
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.dir, in.file))
		if err != nil {
			s.Add(fmt.Sprintf("  [FAIL] Could not read file '%s': %v", in.file, err))
			issues++
			continue
		}
		if !strings.EqualFold(digest(data), info.SHA256) {
			s.Add(fmt.Sprintf("  [FAIL] Hash mismatch for '%s'. It may be corrupted.", in.name))
			issues++
			continue
		}
		s.Add(fmt.Sprintf("  [OK] Hash verified for '%s'.", in.name))
	}
	return issues
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".ppm-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
