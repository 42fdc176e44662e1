package web

import (
	"errors"
	"net/http"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/system"
)

type StartUpdateRequestBody struct {
	ReleaseTag string `json:"release_tag"`
}

func (t api) checkForUpdate(w http.ResponseWriter, r *http.Request) {
	check, err := t.updater.Check(r.Context())
	if err != nil {
		var rce *system.ReleaseCheckError
		if errors.As(err, &rce) {
			sendResponseCode(w, http.StatusBadGateway, map[string]any{
				"error":       "Failed to check for updates",
				"status_code": rce.StatusCode,
			})
			return
		}
		t.log.WithError(err).Error("update check failed")
		sendErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	sendResponse(w, check)
}

func (t api) startUpdate(w http.ResponseWriter, r *http.Request) {
	var req StartUpdateRequestBody
	if err := decodeBody(r, &req); err != nil {
		req = StartUpdateRequestBody{}
	}

	err := t.updater.Start(r.Context(), req.ReleaseTag)
	switch {
	case err == nil:
	case errors.Is(err, boxd.ErrUpdateInProgress):
		sendStatusError(w, http.StatusConflict, "Update already in progress")
		return
	case errors.Is(err, boxd.ErrInvalidReleaseTag):
		sendStatusError(w, http.StatusBadRequest, "No valid release_tag provided")
		return
	default:
		t.log.WithError(err).Error("failed to launch update")
		sendStatusError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if t.config.DevMode {
		sendResponse(w, map[string]string{"status": "started", "message": "DEV MODE: would start update"})
		return
	}
	sendResponse(w, map[string]string{"status": "started"})
}

func (t api) getUpdateStatus(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, t.updater.Status())
}
