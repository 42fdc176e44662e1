package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

var weblog logrus.FieldLogger = logrus.WithField("system", "web")

func sendResponse(w http.ResponseWriter, payload any) {
	sendResponseCode(w, http.StatusOK, payload)
}

func sendResponseCode(w http.ResponseWriter, code int, payload any) {
	// note: w.Header after this, so we can call sendError
	b, err := json.Marshal(payload)
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("in json.Marshal: %s", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.WriteHeader(code)
	w.Write(b)
}

// sendErrorResponse replies {"error": message}.
func sendErrorResponse(w http.ResponseWriter, code int, message string) {
	weblog.Debugf("[!] %d: %s", code, message)
	// would prefer to use json.Marshal, but this avoids the need
	// to handle encoding errors arising from json.Marshal itself!
	payload := fmt.Sprintf("{\"error\":%q}", message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	w.Write([]byte(payload))
}

// sendStatusError replies {"status": "error", "message": message} which is
// what the action endpoints use.
func sendStatusError(w http.ResponseWriter, code int, message string) {
	weblog.Debugf("[!] %d: %s", code, message)
	sendResponseCode(w, code, map[string]any{
		"status":  "error",
		"message": message,
	})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func getOriginIP(r *http.Request) string {
	// handle proxies
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// If there are multiple IPs in X-Forwarded-For, take the first one
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}
