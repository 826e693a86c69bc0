package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/spyglass-dev/spyglass/pkg/cli"
)

// ClientsCommand lists connected app clients.
type ClientsCommand struct {
	client cli.DaemonClient
	style  *termStyle
}

func (cmd *ClientsCommand) Run(args []string) error {
	fs := pflag.NewFlagSet("clients", pflag.ContinueOnError)
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
		return enc.Encode(st.Clients)
	}
	return cmd.outputHuman(st)
}

func (cmd *ClientsCommand) outputHuman(st *cli.State) error {
	if len(st.Clients) == 0 {
		cmd.style.Println("No app clients connected.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, c := range st.Clients {
		marker := " "
		if c.ID == st.Selection.AppID {
			marker = cmd.style.Cyan("*")
		}
		status := cmd.style.Dim("disconnected")
		if c.Connected {
			status = cmd.style.Green("connected")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, c.App, c.OS, c.DeviceID, status)
	}
	return nil
}
