package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Write(cmd.OutOrStdout())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "write [path]",
		Short: "Write the effective configuration as YAML",
		Long: `Write the effective configuration (defaults, config file and flags
merged) to path, or to the user config directory when path is omitted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cfg.Save()
			}
			if args[0] == "-" {
				return cfg.Write(os.Stdout)
			}
			return cfg.SaveTo(args[0])
		},
	})
	return cmd
}
