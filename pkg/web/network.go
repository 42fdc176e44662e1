package web

import (
	"errors"
	"net/http"

	boxd "github.com/lnbitsbox/boxd/pkg"
)

const (
	msgNoAdapter = "No wireless interface found"
	msgSSID      = "SSID is required"
	msgConflict  = "Connection attempt already in progress"
)

func (t api) scanWifi(w http.ResponseWriter, r *http.Request) {
	networks, err := t.network.Scan(r.Context())
	if err != nil {
		if errors.Is(err, boxd.ErrNoAdapter) {
			sendErrorResponse(w, http.StatusNotFound, msgNoAdapter)
			return
		}
		t.log.WithError(err).Error("wifi scan failed")
		sendErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if networks == nil {
		networks = []boxd.ScanResult{}
	}
	sendResponse(w, map[string]any{"networks": networks})
}

type ConnectWifiRequestBody struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

func (t api) connectWifi(w http.ResponseWriter, r *http.Request) {
	var req ConnectWifiRequestBody
	// an unreadable body is treated like an empty one, which fails on the SSID
	if err := decodeBody(r, &req); err != nil {
		req = ConnectWifiRequestBody{}
	}

	err := t.network.Connect(req.SSID, req.Password)
	switch {
	case err == nil:
		sendResponse(w, map[string]string{"status": "connecting"})
	case errors.Is(err, boxd.ErrInvalidSSID):
		sendStatusError(w, http.StatusBadRequest, msgSSID)
	case errors.Is(err, boxd.ErrNoAdapter):
		sendStatusError(w, http.StatusNotFound, msgNoAdapter)
	case errors.Is(err, boxd.ErrConflict):
		sendResponseCode(w, http.StatusConflict, map[string]any{
			"status":   "error",
			"message":  msgConflict,
			"conflict": true,
		})
	default:
		t.log.WithError(err).Error("wifi connect failed")
		sendStatusError(w, http.StatusInternalServerError, err.Error())
	}
}

func (t api) getConnectStatus(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, t.network.ConnectStatus())
}

func (t api) getNetworkInfo(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, t.network.GetNetworkInfo(r.Context()))
}
