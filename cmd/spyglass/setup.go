package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/spyglass-dev/spyglass/internal/config"
)

// runSetup walks the user through first-run configuration and writes
// ~/.spyglass/config.json.
func runSetup(style *termStyle) error {
	style.Header("spyglass setup")

	configPath := config.DefaultPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	cfg := config.CreateDefault(configPath)
	if config.ConfigExists() {
		existing, err := config.Load(configPath)
		if err != nil {
			style.Warn(fmt.Sprintf("Existing config could not be loaded (%v), starting fresh", err))
		} else {
			cfg = existing
			style.Info("Existing config loaded; current values are pre-filled.")
			style.Blank()
		}
	}

	portStr := strconv.Itoa(cfg.GetPort())
	pluginDirs := strings.Join(cfg.PluginDirs, ", ")
	adbPath := cfg.GetADBPath()
	xcrunPath := cfg.GetXcrunPath()
	metro := cfg.GetMetroEnabled()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dashboard port").
				Description("The local port the dashboard listens on").
				Placeholder(strconv.Itoa(config.DefaultPort)).
				Value(&portStr).
				Validate(validatePort),
			huh.NewInput().
				Title("Plugin directories").
				Description("Comma-separated directories scanned for plugin manifests").
				Placeholder("~/.spyglass/plugins").
				Value(&pluginDirs),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("adb path").
				Description("Android debug bridge binary (leave as-is to use PATH)").
				Value(&adbPath),
			huh.NewInput().
				Title("xcrun path").
				Description("Xcode command runner for iOS simulators").
				Value(&xcrunPath),
			huh.NewConfirm().
				Title("Enable the Metro device?").
				Description("Adds a synthetic device for React Native Metro sessions").
				Affirmative("Yes").
				Negative("No").
				Value(&metro),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	port, _ := strconv.Atoi(strings.TrimSpace(portStr))
	if cfg.Network == nil {
		cfg.Network = &config.NetworkConfig{}
	}
	cfg.Network.Port = port

	cfg.PluginDirs = splitDirs(pluginDirs)

	if cfg.Devices == nil {
		cfg.Devices = &config.DevicesConfig{}
	}
	cfg.Devices.ADBPath = strings.TrimSpace(adbPath)
	cfg.Devices.XcrunPath = strings.TrimSpace(xcrunPath)
	cfg.Devices.MetroDisabled = !metro

	if err := cfg.Save(); err != nil {
		return err
	}

	style.Blank()
	style.Success("Config saved to " + configPath)
	style.Blank()
	style.Info("Start the daemon with:")
	style.Code("spyglass start")
	style.Blank()
	return nil
}

// validatePort accepts a numeric port in the unprivileged range.
func validatePort(s string) error {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if port < 1024 || port > 65535 {
		return fmt.Errorf("port must be between 1024 and 65535")
	}
	return nil
}

// splitDirs turns a comma-separated directory list into a clean slice.
func splitDirs(s string) []string {
	var dirs []string
	for _, part := range strings.Split(s, ",") {
		if dir := strings.TrimSpace(part); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if dirs == nil {
		return []string{}
	}
	return dirs
}
