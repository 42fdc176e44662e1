package network_connector

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	network_persistor "github.com/lnbitsbox/boxd/pkg/system/network/persistor"
	network_wifi "github.com/lnbitsbox/boxd/pkg/system/network/wifi"
	network_wpa "github.com/lnbitsbox/boxd/pkg/system/network/wpa"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const originalConf = "ctrl_interface=/run/wpa_supplicant\nupdate_config=1\n\nnetwork={\n\tssid=\"Old\"\n\tpsk=\"oldpass1\"\n}\n"

type fixture struct {
	sim       *network_wpa.Simulator
	conf      network_persistor.ConfigFile
	connector *Connector
	logs      *test.Hook
}

func newFixture(t *testing.T, finder network_wifi.Finder) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wpa_supplicant.conf")
	require.NoError(t, os.WriteFile(path, []byte(originalConf), 0o600))
	conf := network_persistor.NewConfigFile(path)

	sim := network_wpa.NewSimulator([]network_wpa.BSS{
		{BSSID: "aa:aa:aa:aa:aa:01", Frequency: 2412, Signal: -45, Flags: "[WPA2-PSK-CCMP][ESS]", SSID: "Home"},
		{BSSID: "aa:aa:aa:aa:aa:02", Frequency: 2437, Signal: -62, Flags: "[ESS]", SSID: "Cafe"},
	})
	sim.Passwords = map[string]string{"Home": "hunter22", "Cafe": ""}

	// save_config and select_network touch the file for real; mimic that
	// so rollback has something to undo.
	sim.Hook = func(args []string) {
		switch args[0] {
		case "select_network", "save_config":
			_ = os.WriteFile(path, []byte(originalConf+"\nnetwork={\n\tssid=\"New\"\n}\n"), 0o600)
		}
	}

	logger, logs := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c := NewConnector(
		Config{PollInterval: time.Millisecond, PollAttempts: 8},
		network_wpa.NewClient(sim, logger),
		finder,
		conf,
		NewRegistry(),
		logger,
	)
	return &fixture{sim: sim, conf: conf, connector: c, logs: logs}
}

func wlan0() network_wifi.Finder {
	return network_wifi.StaticFinder{Name: "wlan0"}
}

func (f *fixture) confContents(t *testing.T) string {
	t.Helper()
	s, err := f.conf.Read()
	require.NoError(t, err)
	return s
}

func TestConnectRejectsEmptySSID(t *testing.T) {
	f := newFixture(t, wlan0())

	for _, ssid := range []string{"", "   ", "\t"} {
		err := f.connector.Connect(ssid, "whatever")
		assert.ErrorIs(t, err, boxd.ErrInvalidSSID)
	}

	assert.Equal(t, boxd.ConnectionAttempt{Status: boxd.AttemptIdle}, f.connector.Registry().Snapshot())
	assert.Empty(t, f.sim.Calls())
}

func TestConnectWithoutAdapter(t *testing.T) {
	f := newFixture(t, network_wifi.StaticFinder{})

	err := f.connector.Connect("Home", "hunter22")

	assert.ErrorIs(t, err, boxd.ErrNoAdapter)
	assert.Equal(t, boxd.AttemptIdle, f.connector.Registry().Snapshot().Status)
	assert.Empty(t, f.sim.Calls())
}

func TestConnectSuccess(t *testing.T) {
	f := newFixture(t, wlan0())
	f.sim.CompleteAfter = 3

	require.NoError(t, f.connector.Connect("  Home ", "hunter22"))
	f.connector.Wait()

	assert.Equal(t, boxd.ConnectionAttempt{
		Status:  boxd.AttemptSuccess,
		Message: "Connected to Home",
		IP:      "192.168.1.42",
	}, f.connector.Registry().Snapshot())

	assert.Equal(t, 3, f.sim.Count("status"), "polling stops at the first COMPLETED")
	assert.Equal(t, 1, f.sim.Count("save_config"))
	assert.Equal(t, 0, f.sim.Count("reconfigure"))

	calls := f.sim.Calls()
	assert.Equal(t, []string{"add_network"}, calls[0])
	assert.Equal(t, []string{"set_network", "0", "ssid", `"Home"`}, calls[1])
	assert.Equal(t, []string{"set_network", "0", "psk", `"hunter22"`}, calls[2])
	assert.Equal(t, []string{"select_network", "0"}, calls[3])
	assert.Contains(t, calls, []string{"enable_network", "all"})
}

func TestConnectOpenNetwork(t *testing.T) {
	f := newFixture(t, wlan0())

	require.NoError(t, f.connector.Connect("Cafe", ""))
	f.connector.Wait()

	assert.Equal(t, boxd.AttemptSuccess, f.connector.Registry().Snapshot().Status)

	calls := f.sim.Calls()
	assert.Contains(t, calls, []string{"set_network", "0", "key_mgmt", "NONE"})
	for _, c := range calls {
		if c[0] == "set_network" {
			assert.NotEqual(t, "psk", c[2], "open networks never get a psk")
		}
	}
}

func TestConnectNeverCompletesRollsBack(t *testing.T) {
	f := newFixture(t, wlan0())

	require.NoError(t, f.connector.Connect("Home", "wrongpass"))
	f.connector.Wait()

	assert.Equal(t, boxd.ConnectionAttempt{
		Status:  boxd.AttemptFailed,
		Message: "Failed to connect to Home",
	}, f.connector.Registry().Snapshot())

	assert.Equal(t, 8, f.sim.Count("status"))
	assert.Equal(t, 1, f.sim.Count("reconfigure"))
	assert.Equal(t, 0, f.sim.Count("save_config"))
	assert.Equal(t, originalConf, f.confContents(t))
}

func TestConnectErrorMidProcedure(t *testing.T) {
	f := newFixture(t, wlan0())
	f.sim.Fail = map[string]error{"select_network": errors.New("no such network")}

	require.NoError(t, f.connector.Connect("Home", "hunter22"))
	f.connector.Wait()

	snap := f.connector.Registry().Snapshot()
	assert.Equal(t, boxd.AttemptFailed, snap.Status)
	assert.Contains(t, snap.Message, "no such network")
	assert.Empty(t, snap.IP)

	assert.Equal(t, 0, f.sim.Count("status"))
	assert.Equal(t, 1, f.sim.Count("reconfigure"))
	assert.Equal(t, originalConf, f.confContents(t))
}

func TestConnectRejectedPassphraseStaysSecret(t *testing.T) {
	f := newFixture(t, wlan0())

	// too short for WPA, the supplicant answers FAIL to set_network psk
	require.NoError(t, f.connector.Connect("Home", "s3cret!"))
	f.connector.Wait()

	snap := f.connector.Registry().Snapshot()
	assert.Equal(t, boxd.AttemptFailed, snap.Status)
	assert.Contains(t, snap.Message, "password rejected for Home")
	assert.NotContains(t, snap.Message, "s3cret!")
	assert.NotContains(t, snap.Message, "FAIL: FAIL")

	assert.Equal(t, 0, f.sim.Count("select_network"))
	assert.Equal(t, 1, f.sim.Count("reconfigure"))
	assert.Equal(t, originalConf, f.confContents(t))

	require.NotEmpty(t, f.logs.AllEntries())
	for _, entry := range f.logs.AllEntries() {
		line, err := entry.String()
		require.NoError(t, err)
		assert.NotContains(t, line, "s3cret!")
	}
}

func TestConnectHexEncodesUnusualSSID(t *testing.T) {
	f := newFixture(t, wlan0())
	ssid := `Say "hi"`
	f.sim.Networks = append(f.sim.Networks, network_wpa.BSS{BSSID: "aa:aa:aa:aa:aa:03", Signal: -50, SSID: ssid})
	f.sim.Passwords[ssid] = "hunter22"

	require.NoError(t, f.connector.Connect(ssid, "hunter22"))
	f.connector.Wait()

	assert.Equal(t, boxd.AttemptSuccess, f.connector.Registry().Snapshot().Status)
	assert.Equal(t, []string{"set_network", "0", "ssid", hex.EncodeToString([]byte(ssid))}, f.sim.Calls()[1])
}

func TestConnectWithoutSnapshot(t *testing.T) {
	f := newFixture(t, wlan0())
	require.NoError(t, os.Remove(f.conf.Path()))
	f.sim.Hook = nil

	require.NoError(t, f.connector.Connect("Home", "wrongpass"))
	f.connector.Wait()

	assert.Equal(t, boxd.AttemptFailed, f.connector.Registry().Snapshot().Status)
	assert.Equal(t, 0, f.sim.Count("reconfigure"), "nothing to restore")

	_, err := os.Stat(f.conf.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConnectConflict(t *testing.T) {
	f := newFixture(t, wlan0())
	f.connector.config.PollInterval = 20 * time.Millisecond

	release := make(chan struct{})
	f.sim.Hook = func(args []string) {
		if args[0] == "add_network" {
			<-release
		}
	}

	require.NoError(t, f.connector.Connect("Home", "hunter22"))
	before := f.connector.Registry().Snapshot()
	assert.Equal(t, boxd.AttemptConnecting, before.Status)
	assert.Equal(t, "Connecting to Home...", before.Message)

	err := f.connector.Connect("Cafe", "")
	assert.ErrorIs(t, err, boxd.ErrConflict)
	assert.Equal(t, before, f.connector.Registry().Snapshot(), "a rejected request touches nothing")

	close(release)
	f.connector.Wait()
	assert.Equal(t, boxd.AttemptSuccess, f.connector.Registry().Snapshot().Status)

	// A finished attempt no longer blocks the next one.
	require.NoError(t, f.connector.Connect("Cafe", ""))
	f.connector.Wait()
	assert.Equal(t, "Connected to Cafe", f.connector.Registry().Snapshot().Message)
}

func TestConnectPublishesAndCounts(t *testing.T) {
	f := newFixture(t, wlan0())
	changes := make(chan boxd.Change, 4)
	f.connector.PublishTo(changes)
	require.NoError(t, f.connector.Instrument(prometheus.NewRegistry()))

	require.NoError(t, f.connector.Connect("Home", "hunter22"))
	f.connector.Wait()

	first := <-changes
	second := <-changes
	assert.Equal(t, boxd.ChangeWifi, first.Type)
	assert.Equal(t, boxd.AttemptConnecting, first.Update.(boxd.ConnectionAttempt).Status)
	assert.Equal(t, boxd.AttemptSuccess, second.Update.(boxd.ConnectionAttempt).Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.connector.attempts.WithLabelValues("success")))
}
