package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const devRoot = "/tmp/lnbitspi-test"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "boxd",
	Short: "boxd runs the LNbitsBox admin dashboard and first-run configurator",
	Long: `boxd is the appliance daemon of an LNbitsBox.

'boxd admin' serves the admin dashboard API (stats, wifi, services, updates).
'boxd configurator' serves the first-run setup wizard.`,
	SilenceUsage: true,
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Run the admin dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, log := setup()
		return Server(config, log).Admin()
	},
}

var configuratorCmd = &cobra.Command{
	Use:   "configurator",
	Short: "Run the first-run setup wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, log := setup()
		return Server(config, log).Configurator()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the boxd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetBoxRelease())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := boxd.DefaultServerConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is /etc/boxd/boxd.yaml)")
	pf.Bool("dev", false, "development mode: simulated hardware, paths under "+devRoot)
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.Bool("log-json", false, "log as JSON")
	pf.String("data-dir", defaults.DataDir, "where boxd keeps its state")
	pf.String("spark-url", defaults.Spark.URL, "Spark sidecar base URL")
	pf.String("lnbits-url", defaults.LNbits.URL, "LNbits base URL")
	pf.String("lnbits-env", defaults.LNbits.EnvFile, "LNbits environment file")

	af := adminCmd.Flags()
	af.String("bind", defaults.Bind, "address to bind the admin API to")
	af.Int("port", defaults.Port, "admin API port")
	af.String("ui-dir", defaults.UiDir, "directory of the dashboard UI, served under /box/")
	af.StringSlice("services", defaults.Services, "systemd services the dashboard may restart")
	af.String("wpa-control-dir", defaults.Wifi.ControlDir, "wpa_supplicant control socket directory")
	af.String("wpa-config", defaults.Wifi.ConfigPath, "wpa_supplicant configuration file")
	af.Duration("wifi-poll-interval", defaults.Wifi.PollInterval, "delay between association checks")
	af.Int("wifi-poll-attempts", defaults.Wifi.PollAttempts, "association checks before giving up")
	af.Duration("wifi-scan-settle", defaults.Wifi.ScanSettle, "wait between triggering a scan and reading results")
	af.Duration("stats-interval", defaults.Stats.Interval, "delay between stats samples")
	af.Int("stats-history", defaults.Stats.HistorySize, "stats samples kept for the charts")
	af.String("releases-url", defaults.Update.ReleasesURL, "GitHub latest release API URL")

	cf := configuratorCmd.Flags()
	cf.String("wizard-bind", defaults.Wizard.Bind, "address to bind the configurator to")
	cf.Int("wizard-port", defaults.Wizard.Port, "configurator port")
	cf.String("admin-user", defaults.Wizard.AdminUser, "system user whose password the wizard sets")

	for _, flags := range []*pflag.FlagSet{pf, af, cf} {
		if err := viper.BindPFlags(flags); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(adminCmd, configuratorCmd, versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("boxd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/boxd")
	}

	viper.SetEnvPrefix("BOXD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// names the appliance's units already export
	viper.BindEnv("dev", "DEV_MODE")
	viper.BindEnv("spark-url", "SPARK_URL")
	viper.BindEnv("lnbits-url", "LNBITS_URL")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setup builds the ServerConfig from flags, env and config file, and
// configures the process wide logger.
func setup() (boxd.ServerConfig, logrus.FieldLogger) {
	config := configFromViper(viper.GetViper())

	logger := logrus.StandardLogger()
	if config.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return config, logger.WithField("release", version.GetBoxRelease().Release)
}

func configFromViper(v *viper.Viper) boxd.ServerConfig {
	config := boxd.DefaultServerConfig()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	config.DevMode = v.GetBool("dev")
	config.Verbose = v.GetBool("verbose")
	config.LogJSON = v.GetBool("log-json")
	str("data-dir", &config.DataDir)
	str("spark-url", &config.Spark.URL)
	str("lnbits-url", &config.LNbits.URL)
	str("lnbits-env", &config.LNbits.EnvFile)

	str("bind", &config.Bind)
	num("port", &config.Port)
	str("ui-dir", &config.UiDir)
	if v.IsSet("services") {
		config.Services = v.GetStringSlice("services")
	}
	str("wpa-control-dir", &config.Wifi.ControlDir)
	str("wpa-config", &config.Wifi.ConfigPath)
	dur("wifi-poll-interval", &config.Wifi.PollInterval)
	num("wifi-poll-attempts", &config.Wifi.PollAttempts)
	dur("wifi-scan-settle", &config.Wifi.ScanSettle)
	dur("stats-interval", &config.Stats.Interval)
	num("stats-history", &config.Stats.HistorySize)
	str("releases-url", &config.Update.ReleasesURL)

	str("wizard-bind", &config.Wizard.Bind)
	num("wizard-port", &config.Wizard.Port)
	str("admin-user", &config.Wizard.AdminUser)

	if config.DevMode {
		config = config.DevPaths(devRoot)
		if user := os.Getenv("USER"); user != "" {
			config.Wizard.AdminUser = user
		}
	}
	return config
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
