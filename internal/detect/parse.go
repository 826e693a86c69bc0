package detect

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/spyglass-dev/spyglass/internal/device"
)

// adbLinePattern matches one row of `adb devices -l` output.
// Format: SERIAL STATE [usb:... product:... model:... device:... transport_id:...]
// Groups: 1=serial, 2=state, 3=trailing key:value properties.
var adbLinePattern = regexp.MustCompile(`^(\S+)\s+(device|offline|unauthorized|emulator)\b\s*(.*)$`)

// adbModelPattern extracts the model property from the trailing fields.
var adbModelPattern = regexp.MustCompile(`\bmodel:(\S+)`)

// ParseADBDevices parses `adb devices -l` output. The banner line and
// blank lines are skipped; unrecognized rows are ignored rather than
// failing the whole listing. Only rows in the "device" state report
// connected.
func ParseADBDevices(output string) []Record {
	var records []Record
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		m := adbLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		serial, state, props := m[1], m[2], m[3]

		title := serial
		if mm := adbModelPattern.FindStringSubmatch(props); mm != nil {
			title = strings.ReplaceAll(mm[1], "_", " ")
		}

		records = append(records, Record{
			Serial:    serial,
			Title:     title,
			OS:        device.OSAndroid,
			Connected: state == "device",
		})
	}
	return records
}

// simctlListing is the wire shape of `xcrun simctl list devices -j`.
type simctlListing struct {
	Devices map[string][]simctlDevice `json:"devices"`
}

type simctlDevice struct {
	UDID        string `json:"udid"`
	Name        string `json:"name"`
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
}

// ParseSimctlDevices parses `xcrun simctl list devices -j` JSON output.
// Unavailable simulators (runtime deleted out from under them) are
// skipped; only booted simulators report connected.
func ParseSimctlDevices(data []byte) ([]Record, error) {
	var listing simctlListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse simctl listing: %w", err)
	}

	var records []Record
	for _, devices := range listing.Devices {
		for _, d := range devices {
			if !d.IsAvailable || d.UDID == "" {
				continue
			}
			records = append(records, Record{
				Serial:    d.UDID,
				Title:     d.Name,
				OS:        device.OSiOS,
				Connected: d.State == "Booted",
			})
		}
	}
	return records, nil
}
