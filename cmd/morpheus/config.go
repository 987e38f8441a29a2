package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Prints the configuration after .morpheus.yaml, .env and MORPHEUS_* overrides are applied. With --init it is written to .morpheus.yaml in the repo root.",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&flagInit, "init", false, "write the effective configuration to .morpheus.yaml")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if flagInit {
		root, err := workspaceRoot()
		if err != nil {
			return outputError("config", err)
		}
		if err := cfg.Save(root); err != nil {
			return outputError("config", err)
		}
	}
	if flagFormat == "text" {
		data, err := cfg.YAML()
		if err != nil {
			return outputError("config", err)
		}
		_, err = fmt.Fprint(stdout, string(data))
		return err
	}
	return outputResult(CLIResult{Command: "config", Results: cfg})
}
