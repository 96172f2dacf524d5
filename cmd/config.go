package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "luckyroute.toml"

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the effective configuration to file (default: " + defaultConfigFile + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}

	configCmd.AddCommand(initCmd)
	return configCmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	path := defaultConfigFile
	if len(args) == 1 {
		path = args[0]
	}
	if err := s.cfg.Save(path); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Wrote configuration to %s\n", path)
	return nil
}
