package network_wpa

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

var _ Runner = &Simulator{}

// Simulator is an in-memory stand-in for wpa_supplicant. It backs dev
// mode and the tests of anything that drives a Runner.
//
// A selected network reaches COMPLETED after CompleteAfter status polls
// when it is visible and its credentials match Passwords. A nil
// Passwords map accepts any credentials.
type Simulator struct {
	Networks      []BSS
	Passwords     map[string]string
	CompleteAfter int
	IP            string

	// Fail forces a command (by name) to fail with the given error.
	Fail map[string]error
	// Hook is called with every command before it is answered.
	Hook func(args []string)

	mu       sync.Mutex
	calls    [][]string
	nextID   int
	blocks   map[string]map[string]string
	selected string
	polls    int
	current  string
}

func NewSimulator(networks []BSS) *Simulator {
	return &Simulator{
		Networks:      networks,
		CompleteAfter: 1,
		IP:            "192.168.1.42",
	}
}

func (s *Simulator) Run(ctx context.Context, iface string, args ...string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, &CommandError{Args: args, ExitCode: -1, Err: err}
	}

	s.mu.Lock()
	s.calls = append(s.calls, append([]string{}, args...))
	hook := s.Hook
	var forced error
	if len(args) > 0 && s.Fail != nil {
		forced = s.Fail[args[0]]
	}
	s.mu.Unlock()

	if hook != nil {
		hook(args)
	}

	if forced != nil {
		return Result{ExitCode: 1}, &CommandError{Args: args, ExitCode: 1, Err: forced}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{Stdout: s.answer(args)}, nil
}

func (s *Simulator) answer(args []string) string {
	if len(args) == 0 {
		return "FAIL\n"
	}

	switch args[0] {
	case "scan", "save_config", "reconfigure", "enable_network":
		return "OK\n"

	case "scan_results":
		var b strings.Builder
		b.WriteString("bssid / frequency / signal level / flags / ssid\n")
		for _, n := range s.Networks {
			fmt.Fprintf(&b, "%s\t%d\t%d\t%s\t%s\n", n.BSSID, n.Frequency, n.Signal, n.Flags, n.SSID)
		}
		return b.String()

	case "add_network":
		if s.blocks == nil {
			s.blocks = map[string]map[string]string{}
		}
		id := fmt.Sprint(s.nextID)
		s.nextID++
		s.blocks[id] = map[string]string{}
		return id + "\n"

	case "set_network":
		if len(args) < 4 {
			return "FAIL\n"
		}
		block, ok := s.blocks[args[1]]
		if !ok {
			return "FAIL\n"
		}
		if args[2] == "psk" && !validPassphrase(args[3]) {
			return "FAIL\n"
		}
		block[args[2]] = args[3]
		return "OK\n"

	case "select_network":
		if len(args) < 2 {
			return "FAIL\n"
		}
		if _, ok := s.blocks[args[1]]; !ok {
			return "FAIL\n"
		}
		s.selected = args[1]
		s.polls = 0
		s.current = ""
		return "OK\n"

	case "status":
		return s.status()
	}

	return "UNKNOWN COMMAND\n"
}

func (s *Simulator) status() string {
	if s.current == "" && s.selected != "" {
		s.polls++
		if s.polls >= s.CompleteAfter && s.acceptable(s.blocks[s.selected]) {
			s.current = DecodeSSID(s.blocks[s.selected]["ssid"])
		}
	}

	if s.current == "" {
		return "wpa_state=SCANNING\n"
	}
	return fmt.Sprintf("bssid=%s\nssid=%s\nwpa_state=COMPLETED\nip_address=%s\n", s.bssid(s.current), s.current, s.IP)
}

func (s *Simulator) acceptable(block map[string]string) bool {
	ssid := DecodeSSID(block["ssid"])
	if s.bssid(ssid) == "" {
		return false
	}
	if s.Passwords == nil {
		return true
	}
	want, ok := s.Passwords[ssid]
	if !ok || want == "" {
		return block["key_mgmt"] == "NONE"
	}
	return unquote(block["psk"]) == want
}

func (s *Simulator) bssid(ssid string) string {
	for _, n := range s.Networks {
		if n.SSID == ssid {
			return n.BSSID
		}
	}
	return ""
}

// Calls returns every command seen so far, in order.
func (s *Simulator) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many times a command was issued.
func (s *Simulator) Count(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if len(c) > 0 && c[0] == cmd {
			n++
		}
	}
	return n
}

// wpa_supplicant only takes quoted passphrases of 8 to 63 characters
// or a raw 64 digit hex key.
func validPassphrase(v string) bool {
	if !strings.HasPrefix(v, `"`) {
		return len(v) == 64
	}
	n := len(unquote(v))
	return n >= 8 && n <= 63
}

func unquote(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
}
