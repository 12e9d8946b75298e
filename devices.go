package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Device states shown by the devices command.
const (
	deviceStateReady   = "ready"
	deviceStateNoToken = "no token"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List configured devices",
		Long: `List the devices in the config file, marking the default device and
devices whose token is still missing or the placeholder.`,
		Args: cobra.NoArgs,
		RunE: runDevices,
	}
}

// deviceView is the JSON shape of one device.
type deviceView struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
	State   string `json:"state"`
}

func runDevices(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	devices := cc.Store.Devices()
	views := make([]deviceView, 0, len(devices))

	for _, d := range devices {
		state := deviceStateReady
		if !d.Configured {
			state = deviceStateNoToken
		}

		views = append(views, deviceView{Name: d.Name, Default: d.Default, State: state})
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, views)
	}

	if len(views) == 0 {
		cc.Statusf("No devices configured in %s\n", cc.Store.Path())
		return nil
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		mark := ""
		if v.Default {
			mark = "*"
		}

		rows = append(rows, []string{v.Name, mark, v.State})
	}

	printTable(os.Stdout, []string{"NAME", "DEFAULT", "STATE"}, rows)

	return nil
}
