package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nugget/config"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage session config files",
	}
	configCmd.AddCommand(newConfigInitCmd(), newConfigCheckCmd())
	rootCmd.AddCommand(configCmd)
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write a session config with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DefaultSessionConfig().SaveConfig(args[0]); err != nil {
				return err
			}
			printInfo(os.Stdout, "Wrote %s\n", args[0])
			return nil
		},
	}
}

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a session config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			printInfo(os.Stdout, "%s: ok (threshold %d, boundary %s)\n",
				args[0], cfg.Threshold, cfg.Boundary)
			return nil
		},
	}
}
