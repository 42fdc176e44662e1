package network_wpa

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Client wraps a Runner with the handful of control-interface commands
// the network manager needs.
type Client struct {
	runner Runner
	log    logrus.FieldLogger
}

func NewClient(runner Runner, log logrus.FieldLogger) *Client {
	return &Client{runner: runner, log: log}
}

func (c *Client) run(ctx context.Context, iface string, args ...string) (string, error) {
	res, err := c.runner.Run(ctx, iface, args...)
	if err != nil {
		err = redactError(err)
		c.log.WithError(err).WithField("cmd", args[0]).Debug("wpa_cli failed")
		return res.Stdout, err
	}
	return res.Stdout, nil
}

// runOK runs a command that answers OK or FAIL.
func (c *Client) runOK(ctx context.Context, iface string, args ...string) error {
	out, err := c.run(ctx, iface, args...)
	if err != nil {
		return err
	}
	reply := strings.TrimSpace(out)
	if strings.HasPrefix(reply, "FAIL") {
		return &CommandError{Args: redact(args), Output: reply, Err: ErrUnexpectedReply}
	}
	return nil
}

// Scan asks the supplicant to start a scan. It does not wait for it.
func (c *Client) Scan(ctx context.Context, iface string) error {
	return c.runOK(ctx, iface, "scan")
}

func (c *Client) ScanResults(ctx context.Context, iface string) ([]BSS, error) {
	out, err := c.run(ctx, iface, "scan_results")
	if err != nil {
		return nil, err
	}
	return ParseScanResults(out), nil
}

func (c *Client) Status(ctx context.Context, iface string) (map[string]string, error) {
	out, err := c.run(ctx, iface, "status")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out), nil
}

// AddNetwork creates a new empty network block and returns its id.
func (c *Client) AddNetwork(ctx context.Context, iface string) (string, error) {
	out, err := c.run(ctx, iface, "add_network")
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if _, err := strconv.Atoi(id); err != nil {
		return "", fmt.Errorf("%w: add_network returned %q", ErrUnexpectedReply, id)
	}
	return id, nil
}

func (c *Client) SetNetwork(ctx context.Context, iface, id, key, value string) error {
	return c.runOK(ctx, iface, "set_network", id, key, value)
}

// SelectNetwork connects to id and disables every other network.
func (c *Client) SelectNetwork(ctx context.Context, iface, id string) error {
	return c.runOK(ctx, iface, "select_network", id)
}

// EnableNetwork accepts a network id or "all".
func (c *Client) EnableNetwork(ctx context.Context, iface, id string) error {
	return c.runOK(ctx, iface, "enable_network", id)
}

func (c *Client) SaveConfig(ctx context.Context, iface string) error {
	return c.runOK(ctx, iface, "save_config")
}

func (c *Client) Reconfigure(ctx context.Context, iface string) error {
	return c.runOK(ctx, iface, "reconfigure")
}

// Quote wraps a value the way set_network expects string values.
func Quote(s string) string {
	return `"` + s + `"`
}

// EncodeSSID quotes printable ASCII SSIDs and hex encodes anything else,
// which set_network takes as the raw bytes.
func EncodeSSID(ssid string) string {
	for i := 0; i < len(ssid); i++ {
		if b := ssid[i]; b < 0x20 || b > 0x7e || b == '"' || b == '\\' {
			return hex.EncodeToString([]byte(ssid))
		}
	}
	return Quote(ssid)
}

// DecodeSSID reverses EncodeSSID.
func DecodeSSID(v string) string {
	if strings.HasPrefix(v, `"`) {
		return strings.TrimSuffix(strings.TrimPrefix(v, `"`), `"`)
	}
	if b, err := hex.DecodeString(v); err == nil {
		return string(b)
	}
	return v
}

// network block keys whose values must not show up in errors or logs
var secretKeys = map[string]bool{
	"psk":      true,
	"password": true,
	"wep_key0": true,
	"wep_key1": true,
	"wep_key2": true,
	"wep_key3": true,
}

const redacted = "[redacted]"

func redact(args []string) []string {
	if len(args) < 4 || args[0] != "set_network" || !secretKeys[args[2]] {
		return args
	}
	out := append([]string{}, args...)
	out[3] = redacted
	return out
}

func redactError(err error) error {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	clean := *cmdErr
	clean.Args = redact(cmdErr.Args)
	return &clean
}
