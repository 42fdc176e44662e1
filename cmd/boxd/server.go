package main

import (
	"fmt"
	"os"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/conductor"
	"github.com/lnbitsbox/boxd/pkg/system"
	"github.com/lnbitsbox/boxd/pkg/system/lifecycle"
	"github.com/lnbitsbox/boxd/pkg/system/network"
	"github.com/lnbitsbox/boxd/pkg/web"
	"github.com/lnbitsbox/boxd/pkg/wizard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

type server struct {
	config boxd.ServerConfig
	log    logrus.FieldLogger
}

func Server(config boxd.ServerConfig, log logrus.FieldLogger) server {
	return server{config, log}
}

func (t server) loadState() (*system.StateManager, error) {
	if err := os.MkdirAll(t.config.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create data dir: %w", err)
	}
	sm := system.NewStateManager(t.config.DataDir, t.log)
	if err := sm.Load(); err != nil {
		return nil, fmt.Errorf("cannot load state: %w", err)
	}
	return sm, nil
}

func (t server) newConductor() *conductor.Conductor {
	opts := []conductor.Option{
		conductor.HookSignals(),
		conductor.Logger(t.log),
	}
	if t.config.Verbose {
		opts = append(opts, conductor.Noisy())
	}
	return conductor.NewConductor(opts...)
}

func (t server) Admin() error {
	if t.config.DevMode {
		t.log.Warn("In development mode: hardware and systemd are simulated")
	}

	sm, err := t.loadState()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Everything that changes under a dashboard is pushed to the websocket
	changes := make(chan boxd.Change, 16)

	/* ----------------------------------------------------------------------- */
	// Set up our system interfaces so we can talk to the host OS

	networkManager := network.NewNetworkManager(t.config, t.log)
	connector := networkManager.Connector()
	connector.PublishTo(changes)
	if err := connector.Instrument(reg); err != nil {
		return err
	}

	serviceManager := system.NewServiceManager(t.config, t.log)
	spark := system.NewSparkClient(t.config)

	systemMonitor := system.NewSystemMonitor(t.config, networkManager, serviceManager, spark, t.log)
	systemMonitor.PublishTo(changes)
	systemMonitor.Instrument(system.NewMetrics(reg))

	systemUpdater := system.NewSystemUpdater(t.config, t.log)
	systemUpdater.PublishTo(changes)

	journalReader := system.NewJournalReader(t.config, t.log)
	lifecycleManager := lifecycle.NewLifecycleManager(t.config, t.log)
	lnbits := system.NewLNbitsChecker(t.config)

	/* ----------------------------------------------------------------------- */
	// Setup our external APIs. REST, Websockets

	wsh := web.NewWSRelay(changes)
	rest := web.RESTAPI(t.config, web.Backends{
		Network:   networkManager,
		Monitor:   systemMonitor,
		Services:  serviceManager,
		Journal:   journalReader,
		Lifecycle: lifecycleManager,
		Updater:   systemUpdater,
		LNbits:    lnbits,
		State:     sm,
		Metrics:   reg,
	}, wsh, t.log)

	/* ----------------------------------------------------------------------- */
	// Create a conductor to manage all the above services startup/shutdown

	c := t.newConductor()
	c.Service("Wifi Connector", connector)
	c.Service("System Monitor", systemMonitor)
	c.Service("System Updater", systemUpdater)
	c.Service("WSock Relay", wsh)
	c.Service("REST API", rest)
	<-c.Start()
	return nil
}

func (t server) Configurator() error {
	sm, err := t.loadState()
	if err != nil {
		return err
	}

	serviceManager := system.NewServiceManager(t.config, t.log)
	wiz := wizard.NewWizard(t.config, serviceManager, sm, t.log)
	if wiz.Configured() {
		t.log.Info("Box is already configured, setup steps will be refused")
	}

	c := t.newConductor()
	c.Service("Configurator", web.ConfiguratorAPI(t.config, wiz, t.log))
	<-c.Start()

	// let a pending finalize start the stack before exiting
	wiz.Wait()
	return nil
}
