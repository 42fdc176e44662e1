package network_wpa

import (
	"strconv"
	"strings"
)

// BSS is one row of `scan_results` output.
type BSS struct {
	BSSID     string
	Frequency int
	Signal    int
	Flags     string
	SSID      string
}

// ParseStatus reads the key=value lines printed by `status`. Lines
// without a '=' are ignored and only the first '=' splits a line.
func ParseStatus(out string) map[string]string {
	status := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), "=")
		if !ok {
			continue
		}
		status[k] = v
	}
	return status
}

// ParseScanResults reads the tab separated table printed by
// `scan_results`:
//
//	bssid / frequency / signal level / flags / ssid
//
// The header line is skipped. Rows that are short, have an empty SSID
// or carry a non-numeric signal are dropped.
func ParseScanResults(out string) []BSS {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return []BSS{}
	}

	rows := []BSS{}
	for _, line := range lines[1:] {
		parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(parts) < 5 {
			continue
		}

		ssid := strings.TrimSpace(parts[4])
		if ssid == "" {
			continue
		}

		signal, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			continue
		}

		// Frequency is informational, a bad value is not a reason to drop the row.
		freq, _ := strconv.Atoi(strings.TrimSpace(parts[1]))

		rows = append(rows, BSS{
			BSSID:     parts[0],
			Frequency: freq,
			Signal:    signal,
			Flags:     parts[3],
			SSID:      ssid,
		})
	}
	return rows
}
