package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/spyglass-dev/spyglass/pkg/cli"
)

// ExportCommand writes an export bundle for the current selection.
type ExportCommand struct {
	client cli.DaemonClient
	style  *termStyle
}

func (cmd *ExportCommand) Run(args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	out := fs.String("out", "", "output file path (default: export dir)")
	compress := fs.String("compress", "", "compression: zstd, lz4, or none (default: automatic)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Args()[0])
	}

	result, err := cmd.client.Export(*out, *compress)
	if err != nil {
		return err
	}

	cmd.style.Success(fmt.Sprintf("Exported bundle %s", result.BundleID))
	cmd.style.KeyValue("Path", result.Path)
	return nil
}
