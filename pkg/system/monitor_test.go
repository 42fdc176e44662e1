package system

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticNetwork struct{}

func (staticNetwork) Scan(ctx context.Context) ([]boxd.ScanResult, error) { return nil, nil }
func (staticNetwork) Connect(ssid, password string) error                 { return nil }
func (staticNetwork) ConnectStatus() boxd.ConnectionAttempt {
	return boxd.ConnectionAttempt{Status: boxd.AttemptIdle}
}
func (staticNetwork) GetNetworkInfo(ctx context.Context) boxd.NetworkInfo {
	return boxd.NetworkInfo{Internet: true}
}

func newTestMonitor(t *testing.T, historySize int) *SystemMonitor {
	t.Helper()
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()

	config := boxd.DefaultServerConfig()
	config.Stats.HistorySize = historySize
	config.Stats.ThermalZone = filepath.Join(dir, "temp")
	config.Stats.Interval = time.Millisecond
	config.TorHost = filepath.Join(dir, "hostname")
	config.Spark.URL = "http://127.0.0.1:1"
	config.Spark.APIKeyFile = filepath.Join(dir, "api-key.env")

	m := NewSystemMonitor(config, staticNetwork{}, DevServiceManager{allowed: config.Services, log: logger}, NewSparkClient(config), logger)
	cpu := 0.0
	m.read = hostReaders{
		cpuPercent: func() (float64, error) { cpu += 10; return cpu, nil },
		memory: func() (boxd.UsageStat, error) {
			return boxd.UsageStat{Used: 512, Total: 1024, Percent: 50}, nil
		},
		disk:   func(string) (boxd.UsageStat, error) { return boxd.UsageStat{}, errors.New("no disk") },
		uptime: func() (float64, error) { return 90061, nil },
	}
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.warmup = time.Millisecond
	return m
}

func TestCurrentSample(t *testing.T) {
	m := newTestMonitor(t, 4)
	require.NoError(t, os.WriteFile(m.config.Stats.ThermalZone, []byte("48312\n"), 0o644))
	require.NoError(t, os.WriteFile(m.config.TorHost, []byte("xyz.onion\n"), 0o644))

	s := m.Current(context.Background())

	assert.Equal(t, "2026-01-02T03:04:05.000000", s.Timestamp)
	assert.Equal(t, 10.0, s.CPUPercent)
	assert.Equal(t, 50.0, s.RAM.Percent)
	assert.Equal(t, boxd.UsageStat{}, s.Disk, "a failing reader leaves zero values")
	require.NotNil(t, s.CPUTemp)
	assert.Equal(t, 48.3, *s.CPUTemp)
	assert.Equal(t, boxd.Uptime{Seconds: 90061, Formatted: "1d 1h 1m"}, s.Uptime)
	assert.Equal(t, map[string]string{"lnbits": "active", "spark-sidecar": "active"}, s.Services)
	assert.Nil(t, s.SparkBalance)
	require.NotNil(t, s.TorOnion)
	assert.Equal(t, "xyz.onion", *s.TorOnion)
	assert.True(t, s.Network.Internet)

	assert.Empty(t, m.History().CPU, "Current does not record history")
}

func TestCurrentSampleMissingTemperature(t *testing.T) {
	m := newTestMonitor(t, 4)
	s := m.Current(context.Background())
	assert.Nil(t, s.CPUTemp)
	assert.Nil(t, s.TorOnion)
}

func TestHistoryIsBounded(t *testing.T) {
	m := newTestMonitor(t, 2)
	reg := prometheus.NewRegistry()
	m.Instrument(NewMetrics(reg))

	m.sampleOnce()
	m.sampleOnce()
	m.sampleOnce()

	h := m.History()
	assert.Equal(t, []float64{20, 30}, h.CPU)
	assert.Equal(t, []float64{50, 50}, h.RAM)
	assert.Len(t, h.Timestamps, 2)
	assert.Equal(t, []*float64{nil, nil}, h.Temp)

	assert.Equal(t, 30.0, testutil.ToFloat64(m.metrics.cpu))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.service.WithLabelValues("lnbits")))
}

func TestSamplePanicIsContained(t *testing.T) {
	m := newTestMonitor(t, 2)
	m.read.cpuPercent = func() (float64, error) { panic("boom") }

	assert.NotPanics(t, m.sampleOnce)
	assert.Empty(t, m.History().CPU)
}

func TestMonitorRunPublishes(t *testing.T) {
	m := newTestMonitor(t, 8)
	changes := make(chan boxd.Change, 1)
	m.PublishTo(changes)

	started, stopped, stop := make(chan bool), make(chan bool), make(chan context.Context)
	require.NoError(t, m.Run(started, stopped, stop))
	<-started

	select {
	case c := <-changes:
		assert.Equal(t, boxd.ChangeStats, c.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no sample published")
	}

	stop <- context.Background()
	<-stopped
}
