package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSetsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/box/api/login":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "hunter22" {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"success":false,"error":"Invalid password"}`))
				return
			}
			w.Write([]byte(`{"success":true,"token":"abc"}`))
		case "/box/api/network":
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"internet":true,"wifi":null,"ethernet":null}`))
		}
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL)
	err := c.login("wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid password")

	require.NoError(t, c.login("hunter22"))
	info, err := c.network()
	require.NoError(t, err)
	assert.True(t, info.Internet)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestScanErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"No wireless interface found"}`))
	}))
	defer srv.Close()

	_, err := newAPIClient(srv.URL).scan()
	require.Error(t, err)
	assert.Equal(t, "No wireless interface found", err.Error())
}

func TestScanResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"networks":[{"ssid":"Home","signal":-40,"flags":"[WPA2-PSK-CCMP][ESS]"}]}`))
	}))
	defer srv.Close()

	networks, err := newAPIClient(srv.URL).scan()
	require.NoError(t, err)
	require.Len(t, networks, 1)
	assert.Equal(t, "Home", networks[0].SSID)
	assert.Equal(t, "WPA2", security(networks[0].Flags))
}

func TestConnectConflictUsesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"Connection attempt already in progress","conflict":true}`))
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL).connect("Home", "secret")
	require.Error(t, err)
	assert.Equal(t, "Connection attempt already in progress", err.Error())
}

func TestWaitForAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls < 3 {
			w.Write([]byte(`{"status":"connecting","message":"Connecting to Home...","ip":""}`))
			return
		}
		w.Write([]byte(`{"status":"success","message":"Connected to Home","ip":"192.168.1.20"}`))
	}))
	defer srv.Close()

	var seen []boxd.AttemptStatus
	attempt, err := newAPIClient(srv.URL).waitForAttempt(time.Millisecond, time.Second, func(a boxd.ConnectionAttempt) {
		seen = append(seen, a.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, boxd.AttemptSuccess, attempt.Status)
	assert.Equal(t, "192.168.1.20", attempt.IP)
	assert.Equal(t, []boxd.AttemptStatus{boxd.AttemptConnecting, boxd.AttemptConnecting, boxd.AttemptSuccess}, seen)
}

func TestWaitForAttemptTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"connecting","message":"Connecting to Home...","ip":""}`))
	}))
	defer srv.Close()

	_, err := newAPIClient(srv.URL).waitForAttempt(time.Millisecond, 10*time.Millisecond, func(boxd.ConnectionAttempt) {})
	assert.ErrorContains(t, err, "timed out")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 GiB", formatBytes(3*512*1024*1024))
}
