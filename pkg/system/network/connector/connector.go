package network_connector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	network_persistor "github.com/lnbitsbox/boxd/pkg/system/network/persistor"
	network_wifi "github.com/lnbitsbox/boxd/pkg/system/network/wifi"
	network_wpa "github.com/lnbitsbox/boxd/pkg/system/network/wpa"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type Config struct {
	PollInterval time.Duration
	PollAttempts int
}

/* Connector joins a new wifi network without ever leaving the box
 * stranded.
 *
 * Connect validates the request and returns straight away. The actual
 * work happens in a background procedure:
 *
 *   snapshot wpa_supplicant.conf
 *   add + configure a network block, select it (disables all others)
 *   poll `status` until COMPLETED or the poll budget runs out
 *   success: enable all networks again, save_config
 *   failure: write the snapshot back, reconfigure
 *
 * The outcome lands in the Registry, which callers poll.
 */
type Connector struct {
	client   *network_wpa.Client
	finder   network_wifi.Finder
	conf     network_persistor.ConfigFile
	registry *Registry
	config   Config
	log      logrus.FieldLogger
	changes  chan boxd.Change
	attempts *prometheus.CounterVec
	wg       sync.WaitGroup
}

func NewConnector(
	config Config,
	client *network_wpa.Client,
	finder network_wifi.Finder,
	conf network_persistor.ConfigFile,
	registry *Registry,
	log logrus.FieldLogger,
) *Connector {
	if config.PollInterval <= 0 {
		config.PollInterval = boxd.DefaultPollInterval
	}
	if config.PollAttempts <= 0 {
		config.PollAttempts = boxd.DefaultPollAttempts
	}
	return &Connector{
		client:   client,
		finder:   finder,
		conf:     conf,
		registry: registry,
		config:   config,
		log:      log,
	}
}

// PublishTo sends every registry transition to ch as a Change. Sends
// never block the procedure.
func (t *Connector) PublishTo(ch chan boxd.Change) {
	t.changes = ch
}

// Instrument registers the attempt counter with reg.
func (t *Connector) Instrument(reg prometheus.Registerer) error {
	t.attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boxd",
		Subsystem: "wifi",
		Name:      "connect_attempts_total",
		Help:      "Wifi connection attempts by outcome.",
	}, []string{"result"})
	return reg.Register(t.attempts)
}

func (t *Connector) Registry() *Registry {
	return t.registry
}

// Connect starts an attempt to join ssid. A blank password joins an
// open network. It returns once the attempt is accepted or rejected;
// the result is read from the Registry.
func (t *Connector) Connect(ssid, password string) error {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return boxd.ErrInvalidSSID
	}

	iface, ok := t.finder.WirelessInterface()
	if !ok {
		return boxd.ErrNoAdapter
	}

	if err := t.registry.BeginIfIdle(fmt.Sprintf("Connecting to %s...", ssid)); err != nil {
		t.count("conflict")
		return err
	}
	t.publish(t.registry.Snapshot())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.run(iface, ssid, password)
	}()
	return nil
}

// Wait blocks until no attempt is running.
func (t *Connector) Wait() {
	t.wg.Wait()
}

func (t *Connector) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		ctx := <-stop

		// There is no way to cancel an attempt, but it is bounded by the
		// poll budget. Give it the chance to finish or roll back.
		done := make(chan struct{})
		go func() {
			t.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			t.log.Warn("Shutting down with a wifi connection attempt in flight")
		}
		stopped <- true
	}()
	return nil
}

type snapshot struct {
	contents string
	ok       bool
}

func (t *Connector) run(iface, ssid, password string) {
	log := t.log.WithFields(logrus.Fields{"iface": iface, "ssid": ssid})
	ctx := context.Background()
	snap := snapshot{}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Wifi connect procedure panicked: %v", r)
			t.rollback(ctx, iface, snap, log)
			t.finish(boxd.AttemptFailed, fmt.Sprint(r), "")
		}
	}()

	snap = t.snapshot(log)

	ip, connected, err := t.join(ctx, iface, ssid, password, log)
	if err != nil {
		log.WithError(err).Warn("Wifi connect procedure failed")
		t.rollback(ctx, iface, snap, log)
		t.finish(boxd.AttemptFailed, err.Error(), "")
		return
	}

	if !connected {
		log.Warnf("Network never reported COMPLETED after %d polls", t.config.PollAttempts)
		t.rollback(ctx, iface, snap, log)
		t.finish(boxd.AttemptFailed, fmt.Sprintf("Failed to connect to %s", ssid), "")
		return
	}

	// The box is on the new network at this point. Failing to persist
	// it is logged but does not undo the connection.
	if err := t.client.EnableNetwork(ctx, iface, "all"); err != nil {
		log.WithError(err).Warn("Failed to re-enable networks")
	}
	if err := t.client.SaveConfig(ctx, iface); err != nil {
		log.WithError(err).Warn("Failed to save wpa_supplicant config")
	}

	log.WithField("ip", ip).Info("Connected to wifi network")
	t.finish(boxd.AttemptSuccess, fmt.Sprintf("Connected to %s", ssid), ip)
}

func (t *Connector) snapshot(log logrus.FieldLogger) snapshot {
	contents, err := t.conf.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Infof("No %s to snapshot, rollback disabled", t.conf.Path())
		} else {
			log.WithError(err).Warn("Could not snapshot supplicant config, rollback disabled")
		}
		return snapshot{}
	}
	return snapshot{contents: contents, ok: true}
}

// join provisions and selects the network, then polls until it comes up
// or the poll budget is spent.
func (t *Connector) join(ctx context.Context, iface, ssid, password string, log logrus.FieldLogger) (string, bool, error) {
	id, err := t.client.AddNetwork(ctx, iface)
	if err != nil {
		return "", false, err
	}

	if err := t.client.SetNetwork(ctx, iface, id, "ssid", network_wpa.EncodeSSID(ssid)); err != nil {
		return "", false, err
	}

	if password != "" {
		// the client redacts the passphrase from its errors
		if err := t.client.SetNetwork(ctx, iface, id, "psk", network_wpa.Quote(password)); err != nil {
			return "", false, fmt.Errorf("password rejected for %s: %w", ssid, err)
		}
	} else if err := t.client.SetNetwork(ctx, iface, id, "key_mgmt", "NONE"); err != nil {
		return "", false, err
	}

	if err := t.client.SelectNetwork(ctx, iface, id); err != nil {
		return "", false, err
	}

	for i := 0; i < t.config.PollAttempts; i++ {
		time.Sleep(t.config.PollInterval)

		status, err := t.client.Status(ctx, iface)
		if err != nil {
			log.WithError(err).Debugf("Status poll %d failed", i+1)
			continue
		}
		if status["wpa_state"] == "COMPLETED" {
			return status["ip_address"], true, nil
		}
		log.Debugf("Poll %d: wpa_state=%s", i+1, status["wpa_state"])
	}

	return "", false, nil
}

func (t *Connector) rollback(ctx context.Context, iface string, snap snapshot, log logrus.FieldLogger) {
	if !snap.ok {
		return
	}
	if err := t.conf.Write(snap.contents); err != nil {
		log.WithError(err).Error("Failed to restore supplicant config")
		return
	}
	if err := t.client.Reconfigure(ctx, iface); err != nil {
		log.WithError(err).Error("Failed to reload restored supplicant config")
		return
	}
	log.Info("Restored previous supplicant config")
}

func (t *Connector) finish(status boxd.AttemptStatus, message, ip string) {
	attempt := t.registry.finish(status, message, ip)
	t.count(string(status))
	t.publish(attempt)
}

func (t *Connector) count(result string) {
	if t.attempts != nil {
		t.attempts.WithLabelValues(result).Inc()
	}
}

func (t *Connector) publish(attempt boxd.ConnectionAttempt) {
	if t.changes == nil {
		return
	}
	select {
	case t.changes <- boxd.Change{ID: "internal", Type: boxd.ChangeWifi, Update: attempt}:
	default:
		t.log.Debug("Change channel full, dropping wifi update")
	}
}
