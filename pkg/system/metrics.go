package system

import (
	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the latest stats sample to prometheus.
type Metrics struct {
	cpu      prometheus.Gauge
	ram      prometheus.Gauge
	disk     prometheus.Gauge
	temp     prometheus.Gauge
	uptime   prometheus.Gauge
	balance  prometheus.Gauge
	internet prometheus.Gauge
	service  *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "boxd", Name: name, Help: help})
	}

	m := &Metrics{
		cpu:      gauge("cpu_percent", "CPU utilisation in percent."),
		ram:      gauge("memory_used_percent", "Memory in use in percent."),
		disk:     gauge("disk_used_percent", "Root filesystem in use in percent."),
		temp:     gauge("cpu_temperature_celsius", "SoC temperature."),
		uptime:   gauge("uptime_seconds", "Seconds since boot."),
		balance:  gauge("spark_balance_sats", "Spark wallet balance."),
		internet: gauge("internet_reachable", "1 when the internet check succeeded."),
		service: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "boxd",
			Name:      "service_active",
			Help:      "1 when the systemd unit is active.",
		}, []string{"service"}),
	}

	reg.MustRegister(m.cpu, m.ram, m.disk, m.temp, m.uptime, m.balance, m.internet, m.service)
	return m
}

func (m *Metrics) Observe(s boxd.StatsSample) {
	m.cpu.Set(s.CPUPercent)
	m.ram.Set(s.RAM.Percent)
	m.disk.Set(s.Disk.Percent)
	m.uptime.Set(s.Uptime.Seconds)
	if s.CPUTemp != nil {
		m.temp.Set(*s.CPUTemp)
	}
	if s.SparkBalance != nil {
		m.balance.Set(float64(s.SparkBalance.Balance))
	}
	m.internet.Set(boolGauge(s.Network.Internet))
	for svc, state := range s.Services {
		m.service.WithLabelValues(svc).Set(boolGauge(state == "active"))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
