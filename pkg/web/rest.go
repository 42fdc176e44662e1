package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/conductor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Backends are the subsystems the admin API talks to.
type Backends struct {
	Network   boxd.NetworkManager
	Monitor   boxd.SystemMonitor
	Services  boxd.ServiceManager
	Journal   boxd.JournalReader
	Lifecycle boxd.LifecycleManager
	Updater   boxd.SystemUpdater
	LNbits    boxd.LNbitsChecker
	State     boxd.StateManager
	Metrics   prometheus.Gatherer
}

func RESTAPI(config boxd.ServerConfig, b Backends, ws WSRelay, log logrus.FieldLogger) conductor.Service {
	return newAPI(config, b, ws, log)
}

func newAPI(config boxd.ServerConfig, b Backends, ws WSRelay, log logrus.FieldLogger) api {
	a := api{
		config:    config,
		network:   b.Network,
		monitor:   b.Monitor,
		services:  b.Services,
		journal:   b.Journal,
		lifecycle: b.Lifecycle,
		updater:   b.Updater,
		lnbits:    b.LNbits,
		state:     b.State,
		sessions:  newSessionStore(),
		ws:        ws,
		log:       log.WithField("system", "web"),
	}

	routes := map[string]http.HandlerFunc{
		"POST /box/api/login":  a.login,
		"POST /box/api/logout": a.logout,

		"GET /box/api/stats":              a.getStats,
		"GET /box/api/network":            a.getNetworkInfo,
		"GET /box/api/lnbits-status":      a.getLNbitsStatus,
		"GET /box/api/logs/{service}":     a.getServiceLogs,
		"POST /box/api/restart/{service}": a.restartService,
		"POST /box/api/shutdown":          a.hostShutdown,
		"POST /box/api/reboot":            a.hostReboot,

		"POST /box/api/wifi/scan":          a.scanWifi,
		"POST /box/api/wifi/connect":       a.connectWifi,
		"GET /box/api/wifi/connect/status": a.getConnectStatus,

		"GET /box/api/update/check":   a.checkForUpdate,
		"POST /box/api/update/start":  a.startUpdate,
		"GET /box/api/update/status":  a.getUpdateStatus,
		"GET /box/ws/stats":           a.getUpdateSocket,
		"GET /box/ws/logs/{service}":  a.getLogSocket,
		"GET /box/ws/update-log":      a.getUpdateLogSocket,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	for p, h := range routes {
		method, path, _ := strings.Cut(p, " ")
		r.Method(method, path, a.authReq(p, h))
	}

	// scraped locally, outside the login
	if b.Metrics != nil {
		r.Method(http.MethodGet, "/box/metrics", metricsHandler(b.Metrics))
	}

	if config.UiDir != "" {
		r.Handle("/box/*", http.StripPrefix("/box", serveSPA(config.UiDir, "index.html")))
	}

	a.router = r
	a.log.Debugf("Loaded %d API routes", len(routes))
	return a
}

type api struct {
	config    boxd.ServerConfig
	network   boxd.NetworkManager
	monitor   boxd.SystemMonitor
	services  boxd.ServiceManager
	journal   boxd.JournalReader
	lifecycle boxd.LifecycleManager
	updater   boxd.SystemUpdater
	lnbits    boxd.LNbitsChecker
	state     boxd.StateManager
	sessions  *sessionStore
	ws        WSRelay
	router    chi.Router
	log       logrus.FieldLogger
}

func (t api) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		var handler http.Handler = t.router
		if t.config.DevMode {
			handler = cors.AllowAll().Handler(t.router)
		}
		srv := &http.Server{Addr: fmt.Sprintf("%s:%d", t.config.Bind, t.config.Port), Handler: handler}
		go func() {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				t.log.Fatalf("HTTP server public ListenAndServe: %v", err)
			}
		}()

		started <- true
		ctx := <-stop
		srv.Shutdown(ctx)
		stopped <- true
	}()
	return nil
}
