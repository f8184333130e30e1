package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	lineFlag      string
	noStartupFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "poly",
	Short: "Poly — multi-session terminal control surface",
	Long: `Poly — tabs of independent sessions, each running the poly command
language or bridged to a native shell.

Quick Start:
  poly init                       # write ~/.poly with a sample startup script
  poly                            # start the interactive UI
  poly -c "files && cwd"          # run one line and print the result
  poly script setup.poly          # replay a script headlessly

Keys:
  Tab / Shift+Tab                 next / previous session
  Ctrl+T / Ctrl+W                 new / close session
  Up / Down, Right                cycle / accept suggestion
  PgUp / PgDn, Shift+Up/Down      scroll
  Ctrl+C                          quit

Operators:
  a && b                          run b after a
  a | b                           append a's output to b's arguments
  {name}                          variable`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if lineFlag != "" {
			return runExec(cmd.Context(), lineFlag)
		}
		return runUI(cmd.Context(), !noStartupFlag)
	},
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
}

func init() {
	rootCmd.Flags().StringVarP(&lineFlag, "command", "c", "", "execute one command line and exit")
	rootCmd.Flags().BoolVar(&noStartupFlag, "no-startup", false, "skip the startup script")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
