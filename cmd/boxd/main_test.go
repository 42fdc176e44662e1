package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestConfigFromViperDefaults(t *testing.T) {
	config := configFromViper(viper.New())
	assert.False(t, config.DevMode)
	assert.Equal(t, 8090, config.Port)
	assert.Equal(t, "/etc/wpa_supplicant.conf", config.Wifi.ConfigPath)
	assert.Equal(t, []string{"lnbits", "spark-sidecar"}, config.Services)
}

func TestConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("port", 9000)
	v.Set("wifi-poll-attempts", 4)
	v.Set("wifi-poll-interval", "500ms")
	v.Set("spark-url", "http://10.0.0.2:8765")

	config := configFromViper(v)
	assert.Equal(t, 9000, config.Port)
	assert.Equal(t, 4, config.Wifi.PollAttempts)
	assert.Equal(t, 500*time.Millisecond, config.Wifi.PollInterval)
	assert.Equal(t, "http://10.0.0.2:8765", config.Spark.URL)
}

func TestConfigFromViperDevMode(t *testing.T) {
	t.Setenv("USER", "alice")
	v := viper.New()
	v.Set("dev", true)

	config := configFromViper(v)
	assert.True(t, config.DevMode)
	assert.Equal(t, devRoot+"/wpa_supplicant.conf", config.Wifi.ConfigPath)
	assert.Equal(t, devRoot+"/configured", config.Wizard.Marker)
	assert.Equal(t, "alice", config.Wizard.AdminUser)
}
