package main

import (
	"fmt"
	"os"

	"github.com/spyglass-dev/spyglass/internal/config"
	"github.com/spyglass-dev/spyglass/internal/daemon"
	"github.com/spyglass-dev/spyglass/internal/version"
	"github.com/spyglass-dev/spyglass/pkg/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]
	style := newTermStyle()

	switch command {
	case "start":
		// Check if config exists, offer to create if not
		configOk, err := config.EnsureExists()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking config: %v\n", err)
			os.Exit(1)
		}
		if !configOk {
			// User declined to create config
			os.Exit(1)
		}

		if err := daemon.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("spyglass daemon started")

	case "stop":
		if err := daemon.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("spyglass daemon stopped")

	case "status":
		running, url, startedAt, err := daemon.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if running {
			fmt.Println("spyglass daemon is running")
			fmt.Printf("Dashboard: %s\n", url)
			if startedAt != "" {
				fmt.Printf("Started:   %s\n", startedAt)
			}
		} else {
			fmt.Println("spyglass daemon is not running")
			os.Exit(1)
		}

	case "daemon-run":
		// This is the entry point for the daemon process
		if err := daemon.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
			os.Exit(1)
		}

	case "setup":
		if err := runSetup(style); err != nil {
			style.Error(fmt.Sprintf("Setup failed: %v", err))
			os.Exit(1)
		}

	case "version":
		fmt.Printf("spyglass %s\n", version.Version)
		client := cli.NewDaemonClient(cli.GetDefaultURL())
		if client.IsRunning() {
			if v, err := client.GetVersion(); err == nil && v != version.Version {
				style.Warn(fmt.Sprintf("daemon is running version %s", v))
			}
		}

	case "devices":
		cmd := &DevicesCommand{client: requireDaemon(style), style: style}
		runCommand(style, cmd.Run, args)

	case "clients":
		cmd := &ClientsCommand{client: requireDaemon(style), style: style}
		runCommand(style, cmd.Run, args)

	case "use":
		cmd := &UseCommand{client: requireDaemon(style), style: style}
		runCommand(style, cmd.Run, args)

	case "plugins":
		cmd := &PluginsCommand{client: requireDaemon(style), style: style}
		runCommand(style, cmd.Run, args)

	case "enable":
		cmd := &ToggleCommand{client: requireDaemon(style), style: style, enable: true}
		runCommand(style, cmd.Run, args)

	case "disable":
		cmd := &ToggleCommand{client: requireDaemon(style), style: style, enable: false}
		runCommand(style, cmd.Run, args)

	case "export":
		cmd := &ExportCommand{client: requireDaemon(style), style: style}
		runCommand(style, cmd.Run, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// requireDaemon returns a client for the running daemon or exits.
func requireDaemon(style *termStyle) cli.DaemonClient {
	client := cli.NewDaemonClient(cli.GetDefaultURL())
	if !client.IsRunning() {
		style.Error("spyglass daemon is not running")
		style.Info("Start it with: spyglass start")
		os.Exit(1)
	}
	return client
}

func runCommand(style *termStyle, run func([]string) error, args []string) {
	if err := run(args); err != nil {
		style.Error(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("spyglass - device and app inspection")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  spyglass <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  start       Start the daemon in background")
	fmt.Println("  stop        Stop the daemon")
	fmt.Println("  status      Show daemon status and dashboard URL")
	fmt.Println("  daemon-run  Run the daemon in foreground (for debugging)")
	fmt.Println("  devices     List known devices [--json]")
	fmt.Println("  clients     List connected app clients [--json]")
	fmt.Println("  use         Select a device (and optionally an app): use <serial> [app]")
	fmt.Println("  plugins     Show plugin lists for the current selection [--json]")
	fmt.Println("  enable      Enable a plugin: enable <plugin> --app <app> | --device")
	fmt.Println("  disable     Disable a plugin: disable <plugin> --app <app> | --device")
	fmt.Println("  export      Write an export bundle [--out path] [--compress zstd|lz4|none]")
	fmt.Println("  setup       Interactive first-run configuration")
	fmt.Println("  version     Show CLI and daemon version")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  spyglass start                    # Start the daemon")
	fmt.Println("  spyglass devices                  # See connected devices")
	fmt.Println("  spyglass use emulator-5554        # Focus a device")
	fmt.Println("  spyglass export --compress zstd   # Export the current selection")
}
