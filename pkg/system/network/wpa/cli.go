package network_wpa

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultControlDir = "/run/wpa_supplicant"
	DefaultTimeout    = 5 * time.Second
)

// Result is the captured output of a single control-interface command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes one control-interface command against an interface.
type Runner interface {
	Run(ctx context.Context, iface string, args ...string) (Result, error)
}

var _ Runner = CLI{}

// CLI talks to wpa_supplicant through its control socket by spawning
// wpa_cli. It never goes through D-Bus.
type CLI struct {
	Binary     string
	ControlDir string
	Timeout    time.Duration
}

func NewCLI(controlDir string) CLI {
	if controlDir == "" {
		controlDir = DefaultControlDir
	}
	return CLI{
		Binary:     "wpa_cli",
		ControlDir: controlDir,
		Timeout:    DefaultTimeout,
	}
}

func (t CLI) Run(ctx context.Context, iface string, args ...string) (Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		timeout := t.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	argv := append([]string{"-p", t.ControlDir, "-i", iface}, args...)
	cmd := exec.CommandContext(ctx, t.Binary, argv...)

	// A nil Stdin reads from the null device, so wpa_cli can never
	// drop into its interactive prompt.
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, &CommandError{Args: args, ExitCode: -1, Err: ErrTimeout}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &CommandError{
			Args:     args,
			ExitCode: res.ExitCode,
			Output:   strings.TrimSpace(res.Stdout + res.Stderr),
		}
	}

	if err != nil {
		res.ExitCode = -1
		return res, &CommandError{Args: args, ExitCode: -1, Err: err}
	}

	return res, nil
}
