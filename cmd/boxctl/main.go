package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outputJSON bool
	client     *apiClient
)

var rootCmd = &cobra.Command{
	Use:   "boxctl",
	Short: "boxctl talks to the admin API of an LNbitsBox",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		client = newAPIClient(viper.GetString("url"))
		return client.login(viper.GetString("admin-password"))
	},
	SilenceUsage: true,
}

func init() {
	viper.SetEnvPrefix("BOXCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// the admin password is also read from BOXCTL_PASSWORD
	viper.BindEnv("admin-password", "BOXCTL_ADMIN_PASSWORD", "BOXCTL_PASSWORD")

	pf := rootCmd.PersistentFlags()
	pf.String("url", "http://127.0.0.1:8090", "boxd admin API URL")
	pf.String("admin-password", "", "dashboard password (or BOXCTL_PASSWORD)")
	pf.BoolVar(&outputJSON, "json", false, "output in JSON format")
	viper.BindPFlag("url", pf.Lookup("url"))
	viper.BindPFlag("admin-password", pf.Lookup("admin-password"))

	rootCmd.AddCommand(
		newVersionCmd(),
		newWifiCmd(),
		newStatsCmd(),
		newNetworkCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
