package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/poly-cli/poly/internal/engine"
	"github.com/poly-cli/poly/internal/ui"
)

func init() {
	var quiet bool
	scriptCmd := &cobra.Command{
		Use:   "script <file>",
		Short: "Replay a .poly script headlessly and print the session buffers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := engine.LoadScript(args[0])
			if err != nil {
				return err
			}
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if len(script.Lines) == 0 {
				fmt.Fprintln(os.Stderr, "script has no commands:", args[0])
				return nil
			}
			a.headless(cmd.Context(), os.Stdout, ui.NewPlayback(script.Name, script.Lines, quiet))
			return nil
		},
	}
	scriptCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not echo submitted lines")
	rootCmd.AddCommand(scriptCmd)
}
