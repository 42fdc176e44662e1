package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/go-resty/resty/v2"
	godbus "github.com/godbus/dbus/v5"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/utils"
	"github.com/sirupsen/logrus"
	modsemver "golang.org/x/mod/semver"
)

/*
SystemUpdater implements boxd.SystemUpdater

The update itself is done by an external script started as a transient
systemd unit, so it survives this daemon being restarted by the update.
The script reports progress through files in the state directory:

	status          idle|downloading|activating|success|failed
	log             free-form progress log
	target-version  the version being installed
*/

var _ boxd.SystemUpdater = SystemUpdater{}

const updatePath = "PATH=/run/current-system/sw/bin:/usr/bin:/bin"

func NewSystemUpdater(config boxd.ServerConfig, log logrus.FieldLogger) SystemUpdater {
	client := resty.New()
	client.SetTimeout(10 * time.Second)

	return SystemUpdater{
		config:  config.Update,
		devMode: config.DevMode,
		client:  client,
		dial:    dialSystemd,
		log:     log.WithField("system", "updater"),
		poll:    3 * time.Second,
	}
}

type SystemUpdater struct {
	config  boxd.UpdateConfig
	devMode bool
	client  *resty.Client
	dial    func(ctx context.Context) (unitConn, error)
	log     logrus.FieldLogger
	changes chan boxd.Change
	poll    time.Duration
}

// PublishTo makes Run push a Change whenever the update status moves.
func (t *SystemUpdater) PublishTo(ch chan boxd.Change) {
	t.changes = ch
}

func (t SystemUpdater) CurrentVersion() string {
	v, err := utils.ReadTrimmed(t.config.VersionFile)
	if err != nil || v == "" {
		return "dev"
	}
	return v
}

func (t SystemUpdater) Start(ctx context.Context, releaseTag string) error {
	switch t.readState("status") {
	case "downloading", "activating":
		return boxd.ErrUpdateInProgress
	}

	// The tag ends up on a command line, only accept real versions.
	if !modsemver.IsValid(releaseTag) {
		return boxd.ErrInvalidReleaseTag
	}

	if t.devMode {
		t.log.Infof("DEV MODE: would start update to %s", releaseTag)
		return nil
	}

	if err := os.MkdirAll(t.config.StateDir, 0o755); err != nil {
		t.log.WithError(err).Warn("Could not create update state dir")
	} else {
		t.writeState("status", "idle")
		t.writeState("log", "")
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("cannot connect to systemd: %w", err)
	}
	defer conn.Close()

	props := []dbus.Property{
		dbus.PropDescription("LNbitsBox OTA Update"),
		dbus.PropExecStart([]string{t.config.Command, releaseTag}, false),
		{Name: "Environment", Value: godbus.MakeVariant([]string{updatePath})},
	}

	// No job channel: like systemd-run --no-block we only queue the unit.
	if _, err := conn.StartTransientUnitContext(ctx, unitName(t.config.Unit), "replace", props, nil); err != nil {
		return fmt.Errorf("failed to launch update: %w", err)
	}

	t.log.Infof("Started update to %s", releaseTag)
	return nil
}

func (t SystemUpdater) Status() boxd.UpdateStatus {
	if t.devMode {
		return boxd.UpdateStatus{
			Status:   "idle",
			LogLines: []string{"DEV MODE: No update in progress"},
		}
	}

	status := t.readState("status")
	if status == "" {
		status = "idle"
	}

	logLines := []string{}
	if b, err := os.ReadFile(filepath.Join(t.config.StateDir, "log")); err == nil {
		logLines = utils.LastLines(string(b), 50)
	}

	return boxd.UpdateStatus{
		Status:        status,
		LogLines:      logLines,
		TargetVersion: t.readState("target-version"),
	}
}

// FollowLog streams lines the update script appends to its log.
func (t SystemUpdater) FollowLog() (context.CancelFunc, chan string, error) {
	return NewLogTailer(filepath.Join(t.config.StateDir, "log"), t.log).GetChan()
}

func (t SystemUpdater) Run(started, stopped chan bool, stop chan context.Context) error {
	last := t.Status().Status
	// the status file wakes us early, the timer covers a state dir
	// created after startup
	watch := watchStateDir(t.config.StateDir, t.log, "status")
	go func() {
		go func() {
			timer := time.NewTimer(t.poll)
			defer timer.Stop()
		mainloop:
			for {
				select {
				case <-stop:
					break mainloop
				case <-watch.changed:
				case <-timer.C:
					timer.Reset(t.poll)
				}
				status := t.Status()
				if status.Status != last {
					t.log.Infof("Update status %s -> %s", last, status.Status)
					last = status.Status
					t.publish(status)
				}
			}
			watch.Close()
			stopped <- true
		}()
		started <- true
	}()
	return nil
}

func (t SystemUpdater) publish(status boxd.UpdateStatus) {
	if t.changes == nil {
		return
	}
	select {
	case t.changes <- boxd.Change{ID: "internal", Type: boxd.ChangeUpdateStep, Update: status}:
	default:
		t.log.Debug("Change channel full, dropping update status")
	}
}

func (t SystemUpdater) readState(name string) string {
	v, err := utils.ReadTrimmed(filepath.Join(t.config.StateDir, name))
	if err != nil {
		return ""
	}
	return v
}

func (t SystemUpdater) writeState(name, value string) {
	if err := os.WriteFile(filepath.Join(t.config.StateDir, name), []byte(value), 0o644); err != nil {
		t.log.WithError(err).Warnf("Could not reset update %s", name)
	}
}
