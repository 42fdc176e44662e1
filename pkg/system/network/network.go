package network

import (
	"path/filepath"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	network_connector "github.com/lnbitsbox/boxd/pkg/system/network/connector"
	network_persistor "github.com/lnbitsbox/boxd/pkg/system/network/persistor"
	network_wifi "github.com/lnbitsbox/boxd/pkg/system/network/wifi"
	network_wpa "github.com/lnbitsbox/boxd/pkg/system/network/wpa"
	"github.com/sirupsen/logrus"
)

// Networks the dev mode simulator pretends to see.
var devNetworks = []network_wpa.BSS{
	{BSSID: "02:00:00:00:00:01", Frequency: 2412, Signal: -45, Flags: "[WPA2-PSK-CCMP][ESS]", SSID: "HomeNetwork"},
	{BSSID: "02:00:00:00:00:02", Frequency: 2437, Signal: -62, Flags: "[ESS]", SSID: "CoffeeShop_Free"},
	{BSSID: "02:00:00:00:00:03", Frequency: 5180, Signal: -70, Flags: "[WPA2-PSK-CCMP][WPS][ESS]", SSID: "Neighbor5G"},
	{BSSID: "02:00:00:00:00:04", Frequency: 2462, Signal: -78, Flags: "[WPA2-EAP-CCMP][ESS]", SSID: "OfficeWiFi"},
	{BSSID: "02:00:00:00:00:05", Frequency: 5200, Signal: -81, Flags: "[WPA2-PSK-CCMP][ESS]", SSID: "HomeNetwork"},
}

func NewNetworkManager(config boxd.ServerConfig, log logrus.FieldLogger) *NetworkManagerLinux {
	log = log.WithField("system", "wifi")

	var runner network_wpa.Runner
	var finder network_wifi.Finder

	if config.DevMode {
		log.Info("In development mode: simulating wpa_supplicant")
		sim := network_wpa.NewSimulator(devNetworks)
		sim.CompleteAfter = 2
		runner = sim
		finder = network_wifi.StaticFinder{Name: "wlan0"}
	} else {
		runner = network_wpa.NewCLI(config.Wifi.ControlDir)
		finder = network_wifi.NewFinder(log)
	}

	client := network_wpa.NewClient(runner, log)
	connector := network_connector.NewConnector(
		network_connector.Config{
			PollInterval: config.Wifi.PollInterval,
			PollAttempts: config.Wifi.PollAttempts,
		},
		client,
		finder,
		network_persistor.NewConfigFile(filepath.Clean(config.Wifi.ConfigPath)),
		network_connector.NewRegistry(),
		log,
	)

	return newNetworkManager(client, finder, connector, config.Wifi.ScanSettle, config.DevMode, log)
}

func newNetworkManager(
	client *network_wpa.Client,
	finder network_wifi.Finder,
	connector *network_connector.Connector,
	settle time.Duration,
	devMode bool,
	log logrus.FieldLogger,
) *NetworkManagerLinux {
	if settle <= 0 {
		settle = boxd.DefaultScanSettle
	}
	return &NetworkManagerLinux{
		client:    client,
		finder:    finder,
		connector: connector,
		settle:    settle,
		devMode:   devMode,
		log:       log,
		ping:      pingCloudflare,
	}
}
