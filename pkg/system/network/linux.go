package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strings"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	network_connector "github.com/lnbitsbox/boxd/pkg/system/network/connector"
	network_wifi "github.com/lnbitsbox/boxd/pkg/system/network/wifi"
	network_wpa "github.com/lnbitsbox/boxd/pkg/system/network/wpa"
	"github.com/sirupsen/logrus"
)

var _ boxd.NetworkManager = &NetworkManagerLinux{}

type NetworkManagerLinux struct {
	client    *network_wpa.Client
	finder    network_wifi.Finder
	connector *network_connector.Connector
	settle    time.Duration
	devMode   bool
	log       logrus.FieldLogger
	ping      func(ctx context.Context) bool
}

func (t *NetworkManagerLinux) Connector() *network_connector.Connector {
	return t.connector
}

// Scan triggers a scan, waits a fixed settle delay for the adapter to
// collect beacons and then reads back what it found.
func (t *NetworkManagerLinux) Scan(ctx context.Context) ([]boxd.ScanResult, error) {
	iface, ok := t.finder.WirelessInterface()
	if !ok {
		return nil, boxd.ErrNoAdapter
	}

	// A busy adapter refuses a new scan but still has results from the
	// last one, so this is not fatal.
	if err := t.client.Scan(ctx, iface); err != nil {
		t.log.WithError(err).Warn("Could not trigger wifi scan")
	}

	select {
	case <-time.After(t.settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rows, err := t.client.ScanResults(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return Normalize(rows), nil
}

// Normalize drops hidden networks, keeps one entry per SSID (the one
// with the larger signal value) and sorts strongest first.
func Normalize(rows []network_wpa.BSS) []boxd.ScanResult {
	out := []boxd.ScanResult{}
	seen := map[string]int{}

	for _, row := range rows {
		if row.SSID == "" {
			continue
		}
		if i, ok := seen[row.SSID]; ok {
			if row.Signal > out[i].Signal {
				out[i].Signal = row.Signal
				out[i].Flags = row.Flags
			}
			continue
		}
		seen[row.SSID] = len(out)
		out = append(out, boxd.ScanResult{SSID: row.SSID, Signal: row.Signal, Flags: row.Flags})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Signal > out[j].Signal
	})
	return out
}

func (t *NetworkManagerLinux) Connect(ssid, password string) error {
	return t.connector.Connect(ssid, password)
}

func (t *NetworkManagerLinux) ConnectStatus() boxd.ConnectionAttempt {
	return t.connector.Registry().Snapshot()
}

// GetNetworkInfo reports internet reachability, the wifi network we are
// associated with and the first wired interface holding an IPv4 address.
// Every part is best effort.
func (t *NetworkManagerLinux) GetNetworkInfo(ctx context.Context) boxd.NetworkInfo {
	if t.devMode {
		return boxd.NetworkInfo{
			Internet: true,
			Wifi:     &boxd.WifiInfo{SSID: "HomeNetwork", IP: "192.168.1.100", Interface: "wlan0"},
			Ethernet: &boxd.EthernetInfo{Interface: "eth0", IP: "192.168.1.50"},
		}
	}

	info := boxd.NetworkInfo{}
	info.Internet = t.ping(ctx)

	if iface, ok := t.finder.WirelessInterface(); ok {
		status, err := t.client.Status(ctx, iface)
		if err == nil && status["wpa_state"] == "COMPLETED" {
			info.Wifi = &boxd.WifiInfo{
				SSID:      status["ssid"],
				IP:        status["ip_address"],
				Interface: iface,
			}
		}
	}

	info.Ethernet = t.ethernet()
	return info
}

func (t *NetworkManagerLinux) ethernet() *boxd.EthernetInfo {
	allInterfaces, err := net.Interfaces()
	if err != nil {
		t.log.Debugf("Failed to fetch system interfaces: %s", err)
		return nil
	}

	for _, systemInterface := range allInterfaces {
		if !strings.HasPrefix(systemInterface.Name, "eth") && !strings.HasPrefix(systemInterface.Name, "en") {
			continue
		}

		addrs, err := systemInterface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return &boxd.EthernetInfo{Interface: systemInterface.Name, IP: ip4.String()}
			}
		}
	}
	return nil
}

func pingCloudflare(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "ping", "-c", "1", "-W", "2", "1.1.1.1").Run() == nil
}
