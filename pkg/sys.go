package boxd

import (
	"context"
	"errors"
)

// see ./system/ for implementations

// samples host health on a timer and keeps a bounded history
type SystemMonitor interface {
	Current(ctx context.Context) StatsSample
	History() StatsHistory
}

// talks to systemd about the units the box manages
type ServiceManager interface {
	Allowed(service string) bool
	Status(ctx context.Context, service string) string
	Restart(ctx context.Context, service string) error
	StartUnit(ctx context.Context, unit string) error
	ReloadUnit(ctx context.Context, unit string) error
}

// reads the last lines a service wrote to the journal
type JournalReader interface {
	Tail(service string, lines int) ([]string, error)
	GetJournalChan(service string) (context.CancelFunc, chan string, error)
}

type LifecycleManager interface {
	Reboot() error
	Shutdown() error
}

// over-the-air updates driven by a transient systemd unit
type SystemUpdater interface {
	Check(ctx context.Context) (UpdateCheck, error)
	Start(ctx context.Context, releaseTag string) error
	Status() UpdateStatus
	FollowLog() (context.CancelFunc, chan string, error)
}

type LNbitsChecker interface {
	Status(ctx context.Context) LNbitsStatus
}

var (
	ErrServiceNotAllowed = errors.New("invalid service")
	ErrUpdateInProgress  = errors.New("update already in progress")
	ErrInvalidReleaseTag = errors.New("no valid release_tag provided")
)

type UsageStat struct {
	Used    uint64  `json:"used"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
}

type Uptime struct {
	Seconds   float64 `json:"seconds"`
	Formatted string  `json:"formatted"`
}

type SparkBalance struct {
	Balance int64 `json:"balance"`
}

// One stats sample. Nil pointers mean "could not be read".
type StatsSample struct {
	Timestamp    string            `json:"timestamp"`
	CPUPercent   float64           `json:"cpu_percent"`
	RAM          UsageStat         `json:"ram"`
	CPUTemp      *float64          `json:"cpu_temp"`
	Disk         UsageStat         `json:"disk"`
	Uptime       Uptime            `json:"uptime"`
	Services     map[string]string `json:"services"`
	SparkBalance *SparkBalance     `json:"spark_balance"`
	TorOnion     *string           `json:"tor_onion"`
	Network      NetworkInfo       `json:"network"`
}

// The history ring flattened into chart series.
type StatsHistory struct {
	Timestamps []string   `json:"timestamps"`
	CPU        []float64  `json:"cpu"`
	RAM        []float64  `json:"ram"`
	Temp       []*float64 `json:"temp"`
}

type UpdateCheck struct {
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version"`
	UpdateAvailable bool   `json:"update_available"`
	ReleaseNotes    string `json:"release_notes"`
	ReleaseTag      string `json:"release_tag"`
}

type UpdateStatus struct {
	Status        string   `json:"status"`
	LogLines      []string `json:"log_lines"`
	TargetVersion string   `json:"target_version"`
}

type LNbitsStatus struct {
	Status string `json:"status"`
	Code   int    `json:"code,omitempty"`
}
