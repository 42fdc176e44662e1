package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const defaultLogLines = 100

func (t api) hostReboot(w http.ResponseWriter, r *http.Request) {
	if err := t.lifecycle.Reboot(); err != nil {
		sendStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sendResponse(w, map[string]string{"status": "ok", "message": t.devPrefix("Rebooting...", "would reboot")})
}

func (t api) hostShutdown(w http.ResponseWriter, r *http.Request) {
	if err := t.lifecycle.Shutdown(); err != nil {
		sendStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sendResponse(w, map[string]string{"status": "ok", "message": t.devPrefix("Shutting down...", "would shutdown")})
}

func (t api) restartService(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if !t.services.Allowed(service) {
		sendStatusError(w, http.StatusBadRequest, "Invalid service")
		return
	}

	if err := t.services.Restart(r.Context(), service); err != nil {
		t.log.WithError(err).Errorf("restart %s failed", service)
		sendStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg := t.devPrefix(fmt.Sprintf("%s restarted", service), "would restart "+service)
	sendResponse(w, map[string]string{"status": "ok", "message": msg})
}

func (t api) getLNbitsStatus(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, t.lnbits.Status(r.Context()))
}

func (t api) getServiceLogs(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if !t.services.Allowed(service) {
		sendStatusError(w, http.StatusBadRequest, "Invalid service")
		return
	}

	lines := defaultLogLines
	if q := r.URL.Query().Get("lines"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			sendStatusError(w, http.StatusBadRequest, "lines must be a positive number")
			return
		}
		lines = n
	}

	out, err := t.journal.Tail(service, lines)
	if err != nil {
		t.log.WithError(err).Errorf("reading %s journal failed", service)
		sendStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []string{}
	}
	sendResponse(w, map[string]any{"service": service, "lines": out})
}

// devPrefix picks the dev mode wording for action replies.
func (t api) devPrefix(normal, dev string) string {
	if t.config.DevMode {
		return "DEV MODE: " + dev
	}
	return normal
}
