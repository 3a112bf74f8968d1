package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artemgetmann/memv2/pkg/config"
)

var configFlags struct {
	configPath string
}

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the effective configuration",
	}
	configCmd.PersistentFlags().StringVar(&configFlags.configPath, "config", "", "YAML config file layered over defaults")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (defaults layered with --config) as YAML",
		RunE:  runConfigShow,
	}
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate --config (or the bare defaults) and report every failure",
		RunE:  runConfigValidate,
	}

	configCmd.AddCommand(showCmd, validateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(config.WithConfigPath(configFlags.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	data, err := yaml.Marshal(mgr.Get())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	cmd.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	_, err := config.NewManager(config.WithConfigPath(configFlags.configPath))
	if err != nil {
		return err
	}
	cmd.Println("config valid")
	return nil
}
