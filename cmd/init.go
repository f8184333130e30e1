package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/poly-cli/poly/internal/config"
)

var defaultStartup = `# Replayed silently when poly starts. One command per line.
alias ll files
variable greeting "hello from {user}@{hostname}"
echo {greeting}
`

var sampleLua = `-- Commands defined here are available in every session.
function register_plugin(ctx)
  ctx.define_command("hello", function(session, static, rest)
    local who = rest
    if who == "" then who = static[1] end
    session:add("Hello, " .. who .. "! (" .. session:name() .. ")")
  end, {"world"})
  ctx.define_alias("hi", "hello")
end
`

var sampleJS = `// Commands defined here are available in every session.
function registerPlugin(ctx) {
  ctx.defineCommand("upper", function (session, stat, rest) {
    session.add(rest.toUpperCase());
  }, []);
}
`

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize default config in ~/.poly/",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.PolyDir()
			cfg := config.Default()
			if err := os.MkdirAll(cfg.PluginDir, 0o755); err != nil {
				return err
			}

			if _, err := os.Stat(config.Path()); os.IsNotExist(err) {
				if err := cfg.Write(config.Path()); err != nil {
					return err
				}
				fmt.Println("Created", config.Path())
			} else {
				fmt.Println("Exists", config.Path())
			}

			files := []struct{ path, content string }{
				{cfg.StartupScript, defaultStartup},
				{filepath.Join(cfg.PluginDir, "hello.lua"), sampleLua},
				{filepath.Join(cfg.PluginDir, "upper.js"), sampleJS},
			}
			for _, f := range files {
				if _, err := os.Stat(f.path); os.IsNotExist(err) {
					if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
						return err
					}
					fmt.Println("Created", f.path)
				} else {
					fmt.Println("Exists", f.path)
				}
			}

			fmt.Println("✅ Poly initialized at", dir)
			return nil
		},
	})
}
