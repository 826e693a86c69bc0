package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/spyglass-dev/spyglass/pkg/cli"
)

// DevicesCommand lists known devices.
type DevicesCommand struct {
	client cli.DaemonClient
	style  *termStyle
}

func (cmd *DevicesCommand) Run(args []string) error {
	fs := pflag.NewFlagSet("devices", pflag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := cmd.client.GetState()
	if err != nil {
		return err
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Devices)
	}
	return cmd.outputHuman(st)
}

func (cmd *DevicesCommand) outputHuman(st *cli.State) error {
	if len(st.Devices) == 0 {
		cmd.style.Println("No devices found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	status := func(d cli.Device) string {
		if d.Connected {
			return cmd.style.Green("connected")
		}
		return cmd.style.Dim("offline")
	}

	for _, d := range st.Devices {
		marker := " "
		if d.Serial == st.Selection.DeviceSerial {
			marker = cmd.style.Cyan("*")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, d.Serial, d.Title, d.OS, status(d))
	}
	return nil
}
