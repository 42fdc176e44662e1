package network_wifi

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/mdlayher/wifi"
	"github.com/sirupsen/logrus"
)

const DefaultSysClassNet = "/sys/class/net"

// Finder resolves the name of the wireless adapter. The appliance has at
// most one; ok is false when there is none.
type Finder interface {
	WirelessInterface() (name string, ok bool)
}

func NewFinder(log logrus.FieldLogger) Finder {
	return AdapterFinder{
		SysClassNet: DefaultSysClassNet,
		UseNetlink:  true,
		log:         log,
	}
}

var _ Finder = AdapterFinder{}

// AdapterFinder asks nl80211 for station interfaces first and falls back
// to looking for a wireless/ directory under /sys/class/net/<iface>.
type AdapterFinder struct {
	SysClassNet string
	UseNetlink  bool
	log         logrus.FieldLogger
}

func (t AdapterFinder) WirelessInterface() (string, bool) {
	if t.UseNetlink {
		if name, ok := t.fromNetlink(); ok {
			return name, true
		}
	}
	return t.fromSysfs()
}

func (t AdapterFinder) fromNetlink() (string, bool) {
	c, err := wifi.New()
	if err != nil {
		t.debug("Could not init a wifi interface client: %s", err)
		return "", false
	}
	defer c.Close()

	ifis, err := c.Interfaces()
	if err != nil {
		t.debug("Could not list wifi interfaces: %s", err)
		return "", false
	}

	names := []string{}
	for _, ifi := range ifis {
		// Interfaces without a netdev (P2P devices) have no name.
		if ifi.Name == "" || ifi.Type != wifi.InterfaceTypeStation {
			continue
		}
		names = append(names, ifi.Name)
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

func (t AdapterFinder) fromSysfs() (string, bool) {
	dir := t.SysClassNet
	if dir == "" {
		dir = DefaultSysClassNet
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.debug("Could not read %s: %s", dir, err)
		return "", false
	}

	// ReadDir returns entries sorted by name.
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(dir, e.Name(), "wireless")); err == nil {
			return e.Name(), true
		}
	}
	return "", false
}

func (t AdapterFinder) debug(format string, args ...any) {
	if t.log != nil {
		t.log.Debugf(format, args...)
	}
}

// StaticFinder always reports the same adapter. Dev mode uses it.
type StaticFinder struct {
	Name string
}

func (t StaticFinder) WirelessInterface() (string, bool) {
	return t.Name, t.Name != ""
}
