package network_wpa

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout         = errors.New("wpa_cli timed out")
	ErrUnexpectedReply = errors.New("unexpected reply from wpa_cli")
)

// CommandError is returned when a wpa_cli invocation could not be
// completed, either because it failed to spawn, timed out, exited
// non-zero or replied FAIL.
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	cmd := strings.Join(e.Args, " ")
	switch {
	case e.Err != nil && e.Output != "":
		return fmt.Sprintf("wpa_cli %s: %s: %s", cmd, e.Err, e.Output)
	case e.Err != nil:
		return fmt.Sprintf("wpa_cli %s: %s", cmd, e.Err)
	default:
		return fmt.Sprintf("wpa_cli %s: exit status %d: %s", cmd, e.ExitCode, e.Output)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
