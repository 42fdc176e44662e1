package system

import (
	"context"
	"strconv"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/utils"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/sirupsen/logrus"
)

/* SystemMonitor
 *
 * SystemMonitor samples the health of the box every
 * Stats.Interval and keeps the last Stats.HistorySize
 * samples in a ring for the dashboard charts.
 *
 * Every source is best effort: a failing reader yields a
 * zero or nil value in the sample, never an error, and
 * the sampling loop never stops because of one.
 */

var _ boxd.SystemMonitor = &SystemMonitor{}

type hostReaders struct {
	cpuPercent func() (float64, error)
	memory     func() (boxd.UsageStat, error)
	disk       func(path string) (boxd.UsageStat, error)
	uptime     func() (float64, error)
}

var gopsutilReaders = hostReaders{
	cpuPercent: func() (float64, error) {
		p, err := cpu.Percent(0, false)
		if err != nil || len(p) == 0 {
			return 0, err
		}
		return p[0], nil
	},
	memory: func() (boxd.UsageStat, error) {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return boxd.UsageStat{}, err
		}
		return boxd.UsageStat{Used: vm.Used, Total: vm.Total, Percent: vm.UsedPercent}, nil
	},
	disk: func(path string) (boxd.UsageStat, error) {
		du, err := disk.Usage(path)
		if err != nil {
			return boxd.UsageStat{}, err
		}
		percent := 0.0
		if du.Total > 0 {
			percent = round1(float64(du.Used) / float64(du.Total) * 100)
		}
		return boxd.UsageStat{Used: du.Used, Total: du.Total, Percent: percent}, nil
	},
	uptime: func() (float64, error) {
		secs, err := host.Uptime()
		return float64(secs), err
	},
}

func NewSystemMonitor(
	config boxd.ServerConfig,
	network boxd.NetworkManager,
	services boxd.ServiceManager,
	spark SparkClient,
	log logrus.FieldLogger,
) *SystemMonitor {
	return &SystemMonitor{
		config:   config,
		network:  network,
		services: services,
		spark:    spark,
		read:     gopsutilReaders,
		history:  utils.NewRing[boxd.StatsSample](config.Stats.HistorySize),
		log:      log.WithField("system", "monitor"),
		now:      time.Now,
		warmup:   time.Second,
	}
}

type SystemMonitor struct {
	config   boxd.ServerConfig
	network  boxd.NetworkManager
	services boxd.ServiceManager
	spark    SparkClient
	read     hostReaders
	history  *utils.Ring[boxd.StatsSample]
	log      logrus.FieldLogger
	changes  chan boxd.Change
	metrics  *Metrics
	now      func() time.Time
	warmup   time.Duration
}

// PublishTo pushes every sample to ch as a Change.
func (t *SystemMonitor) PublishTo(ch chan boxd.Change) {
	t.changes = ch
}

// Instrument mirrors every sample into prometheus gauges.
func (t *SystemMonitor) Instrument(m *Metrics) {
	t.metrics = m
}

func (t *SystemMonitor) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		go func() {
			// The first cpu.Percent call only sets the baseline.
			t.read.cpuPercent()
			timer := time.NewTimer(t.warmup)
			defer timer.Stop()
		mainloop:
			for {
				select {
				case <-stop:
					break mainloop
				case <-timer.C:
					t.sampleOnce()
					timer.Reset(t.config.Stats.Interval)
				}
			}
			stopped <- true
		}()
		started <- true
	}()
	return nil
}

func (t *SystemMonitor) sampleOnce() {
	defer func() {
		if r := recover(); r != nil {
			t.log.Errorf("Stats sample panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s := t.Current(ctx)
	t.history.Push(s)
	if t.metrics != nil {
		t.metrics.Observe(s)
	}
	if t.changes != nil {
		select {
		case t.changes <- boxd.Change{ID: "internal", Type: boxd.ChangeStats, Update: s}:
		default:
		}
	}
}

// Current collects a fresh sample without touching the history.
func (t *SystemMonitor) Current(ctx context.Context) boxd.StatsSample {
	s := boxd.StatsSample{
		Timestamp: t.now().Format("2006-01-02T15:04:05.000000"),
		Services:  map[string]string{},
	}

	if v, err := t.read.cpuPercent(); err == nil {
		s.CPUPercent = v
	}
	if v, err := t.read.memory(); err == nil {
		s.RAM = v
	}
	if v, err := t.read.disk(t.config.Stats.DiskPath); err == nil {
		s.Disk = v
	}

	s.CPUTemp = readTemperature(t.config.Stats.ThermalZone)

	if secs, err := t.read.uptime(); err == nil {
		s.Uptime = boxd.Uptime{Seconds: secs, Formatted: utils.FormatUptime(secs)}
	} else {
		s.Uptime = boxd.Uptime{Formatted: "unknown"}
	}

	for _, svc := range t.config.Services {
		s.Services[svc] = t.services.Status(ctx, svc)
	}

	if t.config.DevMode {
		s.SparkBalance = &boxd.SparkBalance{Balance: 125000}
	} else {
		s.SparkBalance = t.spark.Balance(ctx)
	}
	s.TorOnion = OnionAddress(t.config.TorHost)
	s.Network = t.network.GetNetworkInfo(ctx)

	return s
}

func (t *SystemMonitor) History() boxd.StatsHistory {
	samples := t.history.Values()
	h := boxd.StatsHistory{
		Timestamps: make([]string, 0, len(samples)),
		CPU:        make([]float64, 0, len(samples)),
		RAM:        make([]float64, 0, len(samples)),
		Temp:       make([]*float64, 0, len(samples)),
	}
	for _, s := range samples {
		h.Timestamps = append(h.Timestamps, s.Timestamp)
		h.CPU = append(h.CPU, s.CPUPercent)
		h.RAM = append(h.RAM, s.RAM.Percent)
		h.Temp = append(h.Temp, s.CPUTemp)
	}
	return h
}

// readTemperature parses a thermal zone file (millidegrees) into
// degrees with one decimal.
func readTemperature(path string) *float64 {
	raw, err := utils.ReadTrimmed(path)
	if err != nil {
		return nil
	}
	milli, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	c := round1(float64(milli) / 1000)
	return &c
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
