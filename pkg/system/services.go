package system

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/sirupsen/logrus"
)

// unitConn is the slice of the systemd D-Bus API we use.
type unitConn interface {
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*dbus.Property, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	ReloadUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StartTransientUnitContext(ctx context.Context, name string, mode string, properties []dbus.Property, ch chan<- string) (int, error)
	Close()
}

func dialSystemd(ctx context.Context) (unitConn, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

var _ boxd.ServiceManager = ServiceManagerSystemd{}

func NewServiceManager(config boxd.ServerConfig, log logrus.FieldLogger) boxd.ServiceManager {
	log = log.WithField("system", "services")
	if config.DevMode {
		return DevServiceManager{allowed: config.Services, log: log}
	}
	return ServiceManagerSystemd{
		allowed: config.Services,
		dial:    dialSystemd,
		log:     log,
	}
}

type ServiceManagerSystemd struct {
	allowed []string
	dial    func(ctx context.Context) (unitConn, error)
	log     logrus.FieldLogger
}

func (t ServiceManagerSystemd) Allowed(service string) bool {
	return slices.Contains(t.allowed, service)
}

// Status returns the unit's ActiveState, eg: active, activating, failed.
func (t ServiceManagerSystemd) Status(ctx context.Context, service string) string {
	conn, err := t.dial(ctx)
	if err != nil {
		t.log.WithError(err).Debug("Could not connect to systemd")
		return "unknown"
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unitName(service), "ActiveState")
	if err != nil {
		return "unknown"
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "unknown"
	}
	return state
}

func (t ServiceManagerSystemd) Restart(ctx context.Context, service string) error {
	if !t.Allowed(service) {
		return boxd.ErrServiceNotAllowed
	}
	t.log.Infof("Restarting %s", service)
	return t.job(ctx, "restart", func(conn unitConn, ch chan<- string) (int, error) {
		return conn.RestartUnitContext(ctx, unitName(service), "replace", ch)
	})
}

func (t ServiceManagerSystemd) StartUnit(ctx context.Context, unit string) error {
	t.log.Infof("Starting %s", unit)
	return t.job(ctx, "start", func(conn unitConn, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, unitName(unit), "replace", ch)
	})
}

func (t ServiceManagerSystemd) ReloadUnit(ctx context.Context, unit string) error {
	t.log.Infof("Reloading %s", unit)
	return t.job(ctx, "reload", func(conn unitConn, ch chan<- string) (int, error) {
		return conn.ReloadUnitContext(ctx, unitName(unit), "replace", ch)
	})
}

// job queues a systemd job and waits for its result.
func (t ServiceManagerSystemd) job(ctx context.Context, what string, queue func(unitConn, chan<- string) (int, error)) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("cannot connect to systemd: %w", err)
	}
	defer conn.Close()

	ch := make(chan string, 1)
	if _, err := queue(conn, ch); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return waitJob(ctx, what, ch)
}

func waitJob(ctx context.Context, what string, ch chan string) error {
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%s job finished with %q", what, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", what, ctx.Err())
	}
}

func unitName(service string) string {
	if strings.Contains(service, ".") {
		return service
	}
	return service + ".service"
}

// DevServiceManager pretends every unit is healthy.
type DevServiceManager struct {
	allowed []string
	log     logrus.FieldLogger
}

func (t DevServiceManager) Allowed(service string) bool {
	return slices.Contains(t.allowed, service)
}

func (t DevServiceManager) Status(ctx context.Context, service string) string {
	return "active"
}

func (t DevServiceManager) Restart(ctx context.Context, service string) error {
	if !t.Allowed(service) {
		return boxd.ErrServiceNotAllowed
	}
	t.log.Infof("DEV MODE: would restart %s", service)
	return nil
}

func (t DevServiceManager) StartUnit(ctx context.Context, unit string) error {
	t.log.Infof("DEV MODE: would start %s", unit)
	return nil
}

func (t DevServiceManager) ReloadUnit(ctx context.Context, unit string) error {
	t.log.Infof("DEV MODE: would reload %s", unit)
	return nil
}
