package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	pluginCmd := &cobra.Command{
		Use:   "plugin",
		Short: "Inspect extensions",
	}

	pluginCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List loaded extensions and load faults",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Println("Plugin dir:", a.cfg.PluginDir)
			for _, id := range a.reg.Loaded() {
				fmt.Printf("  %-20s loaded\n", id)
			}
			for _, f := range a.reg.Faults() {
				fmt.Printf("  %-20s fault: %v\n", f.Provider, f.Err)
			}
			fmt.Println()
			fmt.Println("Commands:")
			for _, c := range a.eng.Commands() {
				fmt.Println("  " + c)
			}
			return nil
		},
	})

	rootCmd.AddCommand(pluginCmd)
}
