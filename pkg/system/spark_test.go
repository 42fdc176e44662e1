package system

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparkBalance(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want *boxd.SparkBalance
	}{
		{"msat", 200, `{"balance_msat": 21000999}`, &boxd.SparkBalance{Balance: 21000}},
		{"sats", 200, `{"balance_sats": 42}`, &boxd.SparkBalance{Balance: 42}},
		{"neither", 200, `{"other": 1}`, nil},
		{"error", 500, `{}`, nil},
	}

	keyFile := filepath.Join(t.TempDir(), "api-key.env")
	require.NoError(t, os.WriteFile(keyFile, []byte("SPARK_SIDECAR_API_KEY=s3cret\n"), 0o600))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/balance", r.URL.Path)
				assert.Equal(t, "s3cret", r.Header.Get("X-API-KEY"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			config := boxd.DefaultServerConfig()
			config.Spark.URL = srv.URL
			config.Spark.APIKeyFile = keyFile

			assert.Equal(t, tt.want, NewSparkClient(config).Balance(context.Background()))
		})
	}
}

func TestSparkBalanceUnreachable(t *testing.T) {
	config := boxd.DefaultServerConfig()
	config.Spark.URL = "http://127.0.0.1:1"
	assert.Nil(t, NewSparkClient(config).Balance(context.Background()))
}

func TestLNbitsChecker(t *testing.T) {
	tests := []struct {
		code int
		want boxd.LNbitsStatus
	}{
		{200, boxd.LNbitsStatus{Status: "running"}},
		{502, boxd.LNbitsStatus{Status: "starting"}},
		{503, boxd.LNbitsStatus{Status: "error", Code: 503}},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
		}))

		config := boxd.DefaultServerConfig()
		config.LNbits.URL = srv.URL
		assert.Equal(t, tt.want, NewLNbitsChecker(config).Status(context.Background()))
		srv.Close()
	}

	config := boxd.DefaultServerConfig()
	config.LNbits.URL = "http://127.0.0.1:1"
	assert.Equal(t, boxd.LNbitsStatus{Status: "stopped"}, NewLNbitsChecker(config).Status(context.Background()))
}

func TestOnionAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname")
	assert.Nil(t, OnionAddress(path))

	require.NoError(t, os.WriteFile(path, []byte("abcdef.onion\n"), 0o600))
	got := OnionAddress(path)
	require.NotNil(t, got)
	assert.Equal(t, "abcdef.onion", *got)
}
