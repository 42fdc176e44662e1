package boxd

import "time"

type ServerConfig struct {
	DataDir  string
	Bind     string
	Port     int
	Verbose  bool
	LogJSON  bool
	DevMode  bool
	UiDir    string
	Services []string

	Wifi    WifiConfig
	Stats   StatsConfig
	Spark   SparkConfig
	LNbits  LNbitsConfig
	Update  UpdateConfig
	Wizard  WizardConfig
	TorHost string
}

type WifiConfig struct {
	ControlDir   string
	ConfigPath   string
	PollInterval time.Duration
	PollAttempts int
	ScanSettle   time.Duration
}

type StatsConfig struct {
	Interval    time.Duration
	HistorySize int
	ThermalZone string
	DiskPath    string
}

type SparkConfig struct {
	URL        string
	APIKeyFile string
}

type LNbitsConfig struct {
	URL     string
	EnvFile string
}

type UpdateConfig struct {
	VersionFile string
	StateDir    string
	ReleasesURL string
	Command     string
	Unit        string
}

type WizardConfig struct {
	Bind         string
	Port         int
	Marker       string
	MnemonicFile string
	APIKeyFile   string
	SparkGroup   string
	AdminUser    string
	StartUnits   []string
	ReloadUnits  []string
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 8
	DefaultScanSettle   = 3 * time.Second

	DefaultStatsInterval    = 30 * time.Second
	DefaultStatsHistorySize = 240
)

// DefaultServerConfig returns the production layout of the appliance.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		DataDir:  "/var/lib/lnbitspi-admin",
		Bind:     "127.0.0.1",
		Port:     8090,
		Services: []string{"lnbits", "spark-sidecar"},
		Wifi: WifiConfig{
			ControlDir:   "/run/wpa_supplicant",
			ConfigPath:   "/etc/wpa_supplicant.conf",
			PollInterval: DefaultPollInterval,
			PollAttempts: DefaultPollAttempts,
			ScanSettle:   DefaultScanSettle,
		},
		Stats: StatsConfig{
			Interval:    DefaultStatsInterval,
			HistorySize: DefaultStatsHistorySize,
			ThermalZone: "/sys/class/thermal/thermal_zone0/temp",
			DiskPath:    "/",
		},
		Spark: SparkConfig{
			URL:        "http://127.0.0.1:8765",
			APIKeyFile: "/var/lib/spark-sidecar/api-key.env",
		},
		LNbits: LNbitsConfig{
			URL:     "http://127.0.0.1:5000",
			EnvFile: "/etc/lnbits/lnbits.env",
		},
		Update: UpdateConfig{
			VersionFile: "/etc/lnbitsbox-version",
			StateDir:    "/var/lib/lnbitsbox-update",
			ReleasesURL: "https://api.github.com/repos/lnbits/LNbitsBox/releases/latest",
			Command:     "/run/current-system/sw/bin/lnbitsbox-update",
			Unit:        "lnbitsbox-update",
		},
		Wizard: WizardConfig{
			Bind:         "127.0.0.1",
			Port:         8080,
			Marker:       "/var/lib/lnbits/.configured",
			MnemonicFile: "/var/lib/spark-sidecar/mnemonic",
			APIKeyFile:   "/var/lib/spark-sidecar/api-key.env",
			SparkGroup:   "spark-sidecar",
			AdminUser:    "lnbitsadmin",
			StartUnits:   []string{"spark-sidecar.service", "lnbits.service", "lnbitspi-admin.service"},
			ReloadUnits:  []string{"caddy.service"},
		},
		TorHost: "/var/lib/tor/onion/lnbits/hostname",
	}
}

// DevPaths moves every file the daemon touches under root so the
// daemon can run on a workstation.
func (c ServerConfig) DevPaths(root string) ServerConfig {
	c.DataDir = root + "/data"
	c.Wifi.ConfigPath = root + "/wpa_supplicant.conf"
	c.LNbits.EnvFile = root + "/lnbits.env"
	c.Update.VersionFile = root + "/lnbitsbox-version"
	c.Update.StateDir = root + "/update"
	c.Wizard.Marker = root + "/configured"
	c.Wizard.MnemonicFile = root + "/mnemonic"
	c.Wizard.APIKeyFile = root + "/api-key.env"
	c.Spark.APIKeyFile = c.Wizard.APIKeyFile
	c.TorHost = root + "/onion-hostname"
	return c
}
