package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/poly-cli/poly/internal/ui"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "exec <line>",
		Short: "Execute one command line, print the session buffer and exit",
		Example: `  poly exec "cd /tmp && files"
  poly exec 'calc 2 ^ 10'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), strings.Join(args, " "))
		},
	})
}

// runExec submits line silently; a script it starts with run is replayed
// before the buffers are printed.
func runExec(ctx context.Context, line string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()
	a.headless(ctx, os.Stdout, ui.NewPlayback("exec", []string{line}, true))
	return nil
}
