package lifecycle

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/login1"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/sirupsen/logrus"
)

var _ boxd.LifecycleManager = LifecycleManagerLinux{}

func NewLifecycleManager(config boxd.ServerConfig, log logrus.FieldLogger) boxd.LifecycleManager {
	log = log.WithField("system", "lifecycle")
	if config.DevMode {
		return LifecycleManagerDev{log: log}
	}
	return LifecycleManagerLinux{log: log}
}

// LifecycleManagerLinux asks logind to reboot or power off. logind
// queues the request, so both return before the box goes down.
type LifecycleManagerLinux struct {
	log logrus.FieldLogger
}

func (t LifecycleManagerLinux) Reboot() error {
	conn, err := login1.New()
	if err != nil {
		return fmt.Errorf("cannot connect to logind: %w", err)
	}
	defer conn.Close()

	t.log.Warn("Rebooting")
	conn.Reboot(false)
	return nil
}

func (t LifecycleManagerLinux) Shutdown() error {
	conn, err := login1.New()
	if err != nil {
		return fmt.Errorf("cannot connect to logind: %w", err)
	}
	defer conn.Close()

	t.log.Warn("Shutting down")
	conn.PowerOff(false)
	return nil
}

type LifecycleManagerDev struct {
	log logrus.FieldLogger
}

func (t LifecycleManagerDev) Reboot() error {
	t.log.Info("DEV MODE: would reboot")
	return nil
}

func (t LifecycleManagerDev) Shutdown() error {
	t.log.Info("DEV MODE: would shutdown")
	return nil
}
