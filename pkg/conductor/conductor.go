package conductor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

/* Service is anything the Conductor can start and stop.
 *
 * Run must not block: it starts whatever goroutines it needs, sends
 * true on started once it is ready, and sends true on stopped once it
 * has shut down after receiving a context on stop. The context carries
 * the shutdown deadline.
 */
type Service interface {
	Run(started, stopped chan bool, stop chan context.Context) error
}

type Option func(*Conductor)

// HookSignals shuts every service down on SIGINT or SIGTERM.
func HookSignals() Option {
	return func(c *Conductor) {
		c.hookSignals = true
	}
}

// Noisy logs every service transition at info level.
func Noisy() Option {
	return func(c *Conductor) {
		c.noisy = true
	}
}

func Logger(log logrus.FieldLogger) Option {
	return func(c *Conductor) {
		c.log = log
	}
}

func ShutdownTimeout(d time.Duration) Option {
	return func(c *Conductor) {
		c.shutdownTimeout = d
	}
}

type service struct {
	name    string
	svc     Service
	started chan bool
	stopped chan bool
	stop    chan context.Context
}

// Conductor starts services in the order they were added and stops
// them in reverse.
type Conductor struct {
	services        []*service
	hookSignals     bool
	noisy           bool
	log             logrus.FieldLogger
	shutdownTimeout time.Duration
	quit            chan struct{}
	quitOnce        sync.Once
}

func NewConductor(opts ...Option) *Conductor {
	c := &Conductor{
		log:             logrus.StandardLogger(),
		shutdownTimeout: 20 * time.Second,
		quit:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("system", "conductor")
	return c
}

func (c *Conductor) Service(name string, svc Service) {
	c.services = append(c.services, &service{
		name:    name,
		svc:     svc,
		started: make(chan bool),
		stopped: make(chan bool),
		stop:    make(chan context.Context),
	})
}

// Stop asks the conductor to shut everything down. It is safe to call
// more than once.
func (c *Conductor) Stop() {
	c.quitOnce.Do(func() { close(c.quit) })
}

// Start brings up every service and returns a channel that is closed
// once they have all been stopped again.
func (c *Conductor) Start() chan bool {
	done := make(chan bool)

	running := []*service{}
	for _, s := range c.services {
		c.say("Starting %s", s.name)
		if err := s.svc.Run(s.started, s.stopped, s.stop); err != nil {
			c.log.WithError(err).Errorf("Failed to start %s", s.name)
			c.Stop()
			break
		}
		<-s.started
		c.say("Started %s", s.name)
		running = append(running, s)
	}

	var sigs chan os.Signal
	if c.hookSignals {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	}

	go func() {
		select {
		case sig := <-sigs:
			c.log.Infof("Received %s, shutting down", sig)
		case <-c.quit:
		}
		if sigs != nil {
			signal.Stop(sigs)
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer cancel()

		for i := len(running) - 1; i >= 0; i-- {
			if err := c.stopService(ctx, running[i]); err != nil {
				c.log.WithError(err).Warnf("Failed to stop %s cleanly", running[i].name)
			}
		}
		close(done)
	}()

	return done
}

// stopService keeps offering the context until the service reports it
// has stopped, since a service may read stop from more than one place.
func (c *Conductor) stopService(ctx context.Context, s *service) error {
	c.say("Stopping %s", s.name)
	for {
		select {
		case s.stop <- ctx:
		case <-s.stopped:
			c.say("Stopped %s", s.name)
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", s.name, ctx.Err())
		}
	}
}

func (c *Conductor) say(format string, args ...any) {
	if c.noisy {
		c.log.Infof(format, args...)
	} else {
		c.log.Debugf(format, args...)
	}
}
