package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/rmcloud-upload/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration (tokens are never shown)",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file and history database paths",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

// configPaths is the JSON shape of "config path".
type configPaths struct {
	Config  string `json:"config"`
	History string `json:"history"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return printJSON(os.Stdout, struct {
			Path    string                `json:"path"`
			Default string                `json:"default_device"`
			Devices []config.DeviceStatus `json:"devices"`
			Network config.Network        `json:"network"`
			Logging config.Logging        `json:"logging"`
		}{
			Path:    cc.Store.Path(),
			Default: cc.Store.DefaultDevice(),
			Devices: cc.Store.Devices(),
			Network: cc.Store.Network(),
			Logging: cc.Store.Logging(),
		})
	}

	return config.RenderEffective(cc.Store, os.Stdout)
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	paths := configPaths{
		Config:  config.ResolveConfigPath(cc.Flags.ConfigPath, cc.Env),
		History: config.DefaultLedgerPath(),
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, paths)
	}

	fmt.Printf("config:  %s\nhistory: %s\n", paths.Config, paths.History)

	return nil
}
