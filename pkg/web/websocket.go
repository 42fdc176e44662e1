package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	boxd "github.com/lnbitsbox/boxd/pkg"
	"golang.org/x/net/websocket"
)

// Represents a websocket connection from a client
type WSCONN struct {
	WS   *websocket.Conn
	Stop chan bool
}

func (t *WSCONN) IsClosed() bool {
	return t.Stop == nil
}

func (t *WSCONN) Close() {
	if t.Stop != nil {
		close(t.Stop)
		t.Stop = nil
	}
}

type BootstrapPayload struct {
	Stats  boxd.StatsSample       `json:"stats"`
	Wifi   boxd.ConnectionAttempt `json:"wifi"`
	Update boxd.UpdateStatus      `json:"update"`
}

// Handle incomming websocket connections for live stats, wifi and update changes
func (t api) getUpdateSocket(w http.ResponseWriter, r *http.Request) {
	initialPayload := func() any {
		return boxd.Change{ID: "internal", Type: "bootstrap", Update: BootstrapPayload{
			Stats:  t.monitor.Current(r.Context()),
			Wifi:   t.network.ConnectStatus(),
			Update: t.updater.Status(),
		}}
	}
	t.ws.GetWSHandler(initialPayload).ServeHTTP(w, r)
}

// Handle incomming websocket connections for a service's journal
func (t api) getLogSocket(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if !t.services.Allowed(service) {
		sendErrorResponse(w, http.StatusBadRequest, "Invalid service")
		return
	}
	cancel, logChan, err := t.journal.GetJournalChan(service)
	if err != nil {
		t.log.WithError(err).Warnf("cannot follow %s journal", service)
		sendErrorResponse(w, http.StatusBadRequest, "Error establishing log channel")
		return
	}
	GetLogHandler(cancel, logChan).ServeHTTP(w, r)
}

// Handle incomming websocket connections for the OTA update log
func (t api) getUpdateLogSocket(w http.ResponseWriter, r *http.Request) {
	cancel, logChan, err := t.updater.FollowLog()
	if err != nil {
		t.log.WithError(err).Warn("cannot follow update log")
		sendErrorResponse(w, http.StatusBadRequest, "Error establishing log channel")
		return
	}
	GetLogHandler(cancel, logChan).ServeHTTP(w, r)
}
