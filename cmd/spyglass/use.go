package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/spyglass-dev/spyglass/pkg/cli"
)

// UseCommand moves display focus to a device, and optionally to an app
// running on it.
type UseCommand struct {
	client cli.DaemonClient
	style  *termStyle
}

func (cmd *UseCommand) Run(args []string) error {
	fs := pflag.NewFlagSet("use", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		return fmt.Errorf("usage: spyglass use <serial> [app]")
	}
	serial := rest[0]

	if err := cmd.client.SelectDevice(serial); err != nil {
		return err
	}
	cmd.style.Success(fmt.Sprintf("Selected device %s", serial))

	if len(rest) == 2 {
		app := rest[1]
		st, err := cmd.client.GetState()
		if err != nil {
			return err
		}
		for _, c := range st.Clients {
			if c.DeviceID == serial && c.App == app {
				if err := cmd.client.SelectClient(c.ID); err != nil {
					return err
				}
				cmd.style.Success(fmt.Sprintf("Selected app %s", app))
				return nil
			}
		}
		return fmt.Errorf("no client for app %q on device %s", app, serial)
	}
	return nil
}
