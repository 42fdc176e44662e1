package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the boxctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetBoxRelease())
		},
	}
}

func newWifiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wifi",
		Short: "Scan for and join wifi networks",
	}

	scan := &cobra.Command{
		Use:   "scan",
		Short: "List nearby networks, strongest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			networks, err := client.scan()
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(networks)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SSID\tSIGNAL\tSECURITY")
			for _, n := range networks {
				fmt.Fprintf(w, "%s\t%d\t%s\n", n.SSID, n.Signal, security(n.Flags))
			}
			return w.Flush()
		},
	}

	var password string
	var timeout time.Duration
	connect := &cobra.Command{
		Use:   "connect <ssid>",
		Short: "Join a network and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.connect(args[0], password); err != nil {
				return err
			}
			last := ""
			attempt, err := client.waitForAttempt(2*time.Second, timeout, func(a boxd.ConnectionAttempt) {
				if a.Message != last && !outputJSON {
					fmt.Println(a.Message)
					last = a.Message
				}
			})
			if err != nil {
				return err
			}
			if outputJSON {
				if err := printJSON(attempt); err != nil {
					return err
				}
			} else if attempt.IP != "" {
				fmt.Printf("IP address: %s\n", attempt.IP)
			}
			if attempt.Status == boxd.AttemptFailed {
				return fmt.Errorf("connection failed")
			}
			return nil
		},
	}
	connect.Flags().StringVarP(&password, "password", "p", "", "network passphrase, empty for an open network")
	connect.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the attempt")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the most recent connection attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			attempt, err := client.connectStatus()
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(attempt)
			}
			fmt.Printf("Status:  %s\n", attempt.Status)
			if attempt.Message != "" {
				fmt.Printf("Message: %s\n", attempt.Message)
			}
			if attempt.IP != "" {
				fmt.Printf("IP:      %s\n", attempt.IP)
			}
			return nil
		},
	}

	cmd.AddCommand(scan, connect, status)
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show current system stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client.stats()
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(s)
			}
			fmt.Printf("CPU:      %.1f%%\n", s.CPUPercent)
			if s.CPUTemp != nil {
				fmt.Printf("Temp:     %.1f°C\n", *s.CPUTemp)
			}
			fmt.Printf("Memory:   %s / %s (%.1f%%)\n", formatBytes(s.RAM.Used), formatBytes(s.RAM.Total), s.RAM.Percent)
			fmt.Printf("Disk:     %s / %s (%.1f%%)\n", formatBytes(s.Disk.Used), formatBytes(s.Disk.Total), s.Disk.Percent)
			fmt.Printf("Uptime:   %s\n", s.Uptime.Formatted)
			fmt.Printf("Internet: %t\n", s.Network.Internet)
			if s.Network.Wifi != nil {
				fmt.Printf("Wifi:     %s (%s)\n", s.Network.Wifi.SSID, s.Network.Wifi.IP)
			}
			if s.SparkBalance != nil {
				fmt.Printf("Balance:  %d sats\n", s.SparkBalance.Balance)
			}
			fmt.Println("Services:")
			for name, state := range s.Services {
				fmt.Printf("  %s: %s\n", name, state)
			}
			return nil
		},
	}
}

func newNetworkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network",
		Short: "Show wifi and ethernet addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := client.network()
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(info)
			}
			fmt.Printf("Internet: %t\n", info.Internet)
			if info.Wifi != nil {
				fmt.Printf("Wifi:     %s on %s (%s)\n", info.Wifi.SSID, info.Wifi.Interface, info.Wifi.IP)
			}
			if info.Ethernet != nil {
				fmt.Printf("Ethernet: %s (%s)\n", info.Ethernet.Interface, info.Ethernet.IP)
			}
			return nil
		},
	}
}

func security(flags string) string {
	switch {
	case strings.Contains(flags, "WPA2"), strings.Contains(flags, "RSN"):
		return "WPA2"
	case strings.Contains(flags, "WPA"):
		return "WPA"
	case strings.Contains(flags, "WEP"):
		return "WEP"
	default:
		return "open"
	}
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
