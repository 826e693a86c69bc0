package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/spyglass-dev/spyglass/pkg/cli"
)

// PluginsCommand shows the plugin lists for the current selection.
type PluginsCommand struct {
	client cli.DaemonClient
	style  *termStyle
}

func (cmd *PluginsCommand) Run(args []string) error {
	fs := pflag.NewFlagSet("plugins", pflag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	plugins, err := cmd.client.GetPlugins()
	if err != nil {
		return err
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plugins)
	}
	return cmd.outputHuman(plugins)
}

func (cmd *PluginsCommand) outputHuman(p *cli.Plugins) error {
	if p.Lists == nil {
		cmd.style.Println("No plugin information available.")
		return nil
	}

	printGroup := func(title string, entries []cli.PluginEntry) {
		if len(entries) == 0 {
			return
		}
		cmd.style.Println(cmd.style.Bold(title))
		for _, e := range entries {
			marker := " "
			if e.ID == p.ActivePlugin {
				marker = cmd.style.Cyan("*")
			}
			cmd.style.Printf("%s %s %s\n", marker, e.ID, cmd.style.Dim(e.Version))
		}
		cmd.style.Blank()
	}

	printGroup("Enabled", p.Lists.Enabled)
	printGroup("Device plugins", p.Lists.DevicePlugins)
	printGroup("Metro plugins", p.Lists.MetroPlugins)
	printGroup("Disabled", p.Lists.Disabled)
	printGroup("Downloadable", p.Lists.Downloadable)

	if len(p.Lists.Unavailable) > 0 {
		cmd.style.Println(cmd.style.Bold("Unavailable"))
		for _, u := range p.Lists.Unavailable {
			cmd.style.Printf("  %s %s\n", u.Definition.ID, cmd.style.Dim(u.Reason))
		}
		cmd.style.Blank()
	}

	if len(p.Updates) > 0 {
		cmd.style.Println(cmd.style.Bold("Updates available"))
		for _, e := range p.Updates {
			cmd.style.Printf("  %s %s\n", e.ID, cmd.style.Yellow(e.Version))
		}
	}
	return nil
}

// ToggleCommand enables or disables a plugin.
type ToggleCommand struct {
	client cli.DaemonClient
	style  *termStyle
	enable bool
}

func (cmd *ToggleCommand) Run(args []string) error {
	name := "disable"
	if cmd.enable {
		name = "enable"
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	app := fs.String("app", "", "app the plugin is toggled for")
	devicePlugin := fs.Bool("device", false, "toggle a device plugin across all devices")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: spyglass %s <plugin> --app <app> | --device", name)
	}
	plugin := rest[0]

	if *devicePlugin && *app != "" {
		return fmt.Errorf("--app and --device are mutually exclusive")
	}

	var err error
	switch {
	case *devicePlugin:
		if cmd.enable {
			err = cmd.client.EnableDevicePlugin(plugin)
		} else {
			err = cmd.client.DisableDevicePlugin(plugin)
		}
	case *app != "":
		if cmd.enable {
			err = cmd.client.EnablePlugin(plugin, *app)
		} else {
			err = cmd.client.DisablePlugin(plugin, *app)
		}
	default:
		return fmt.Errorf("specify --app <app> or --device")
	}
	if err != nil {
		return err
	}

	verb := "disabled"
	if cmd.enable {
		verb = "enabled"
	}
	cmd.style.Success(fmt.Sprintf("Plugin %s %s", plugin, verb))
	return nil
}
