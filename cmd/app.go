package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/poly-cli/poly/internal/builtin"
	"github.com/poly-cli/poly/internal/config"
	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/extension"
	"github.com/poly-cli/poly/internal/extension/calc"
	"github.com/poly-cli/poly/internal/extension/ppm"
	"github.com/poly-cli/poly/internal/extension/webreq"
	"github.com/poly-cli/poly/internal/logging"
	"github.com/poly-cli/poly/internal/session"
	"github.com/poly-cli/poly/internal/ui"
)

// app is one fully wired poly instance: a workspace with one session, the
// engine with builtins, and every extension installed.
type app struct {
	cfg *config.Config
	log *zap.Logger
	ws  *session.Workspace
	eng *engine.Engine
	reg *extension.Registry
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Development: cfg.LogDevelopment})
	if err != nil {
		return nil, err
	}
	log.Info("config loaded", zap.String("path", config.Path()), zap.String("plugins", cfg.PluginDir))

	cwd, err := os.Getwd()
	if err != nil {
		cwd, _ = os.UserHomeDir()
	}
	ws := session.NewWorkspace(func(name string) *session.Session {
		return session.New(name, cwd,
			session.WithLogger(log.Named("bridge")),
			session.WithStopTimeout(cfg.BridgeStopTimeout()),
			session.WithColors(cfg.Colors),
		)
	})
	eng := engine.New(ws, engine.Options{
		Log:          log.Named("engine"),
		MaxPipeDepth: cfg.MaxPipeDepth,
		ConfigDir:    config.PolyDir(),
	})

	client := resty.New().SetTimeout(cfg.HTTPTimeoutDuration())
	reg := extension.NewRegistry(log.Named("extension"), extension.LuaLoader{}, extension.JSLoader{})
	builtin.Register(eng, builtin.Deps{
		Extensions: reg,
		Config:     cfg,
		HTTP:       client,
		Log:        log.Named("builtin"),
	})
	for _, p := range []extension.Provider{calc.New(), webreq.New(client), ppm.New(client, cfg.PluginDir, cfg.PluginRepo)} {
		if err := reg.Install(p, eng); err != nil {
			log.Warn("bundled extension failed", zap.String("id", p.ID()), zap.Error(err))
		}
	}
	reg.Load(cfg.PluginDir, eng)

	ws.Create(builtin.DefaultTabName)
	return &app{cfg: cfg, log: log, ws: ws, eng: eng, reg: reg}, nil
}

func (a *app) loop(live ui.Source) *ui.Loop {
	return ui.New(ui.Options{
		Engine:       a.eng,
		Live:         live,
		Log:          a.log.Named("ui"),
		SidebarWidth: a.cfg.SidebarWidth,
	})
}

// startup returns the silent playback of the startup script, or nil when
// there is none.
func (a *app) startup() (*ui.Playback, error) {
	script, err := engine.LoadScript(a.cfg.StartupScript)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ui.NewPlayback(script.Name, script.Lines, true), nil
}

// headless replays lines through a loop with no live input and prints every
// session buffer.
func (a *app) headless(ctx context.Context, w io.Writer, p *ui.Playback) {
	l := a.loop(ui.NewQueue())
	l.Play(p)
	l.RunHeadless(ctx)
	printBuffers(w, a.ws)
}

func (a *app) Close() {
	a.ws.StopAll()
	if err := a.reg.Close(); err != nil {
		a.log.Warn("close extensions", zap.Error(err))
	}
	_ = a.log.Sync()
}

// printBuffers writes each session's buffer; with several sessions each one
// is headed by its name.
func printBuffers(w io.Writer, ws *session.Workspace) {
	sessions := ws.Sessions()
	for i, s := range sessions {
		if len(sessions) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "[%s]\n", s.Name())
		}
		for _, line := range s.Lines() {
			fmt.Fprintln(w, line)
		}
	}
}
