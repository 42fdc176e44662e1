package boxd

import (
	"context"
	"errors"
)

var (
	ErrInvalidSSID = errors.New("SSID is required")
	ErrConflict    = errors.New("connection attempt already in progress")
	ErrNoAdapter   = errors.New("no wireless interface found")
)

type AttemptStatus string

const (
	AttemptIdle       AttemptStatus = "idle"
	AttemptConnecting AttemptStatus = "connecting"
	AttemptSuccess    AttemptStatus = "success"
	AttemptFailed     AttemptStatus = "failed"
)

func (s AttemptStatus) Terminal() bool {
	return s == AttemptSuccess || s == AttemptFailed
}

// ConnectionAttempt is the record of the most recent connect request.
type ConnectionAttempt struct {
	Status  AttemptStatus `json:"status"`
	Message string        `json:"message"`
	IP      string        `json:"ip"`
}

type ScanResult struct {
	SSID   string `json:"ssid"`
	Signal int    `json:"signal"`
	Flags  string `json:"flags"`
}

type WifiInfo struct {
	SSID      string `json:"ssid"`
	IP        string `json:"ip"`
	Interface string `json:"interface"`
}

type EthernetInfo struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
}

type NetworkInfo struct {
	Internet bool          `json:"internet"`
	Wifi     *WifiInfo     `json:"wifi"`
	Ethernet *EthernetInfo `json:"ethernet"`
}

// see ./system/network for implementations
type NetworkManager interface {
	Scan(ctx context.Context) ([]ScanResult, error)
	Connect(ssid, password string) error
	ConnectStatus() ConnectionAttempt
	GetNetworkInfo(ctx context.Context) NetworkInfo
}
