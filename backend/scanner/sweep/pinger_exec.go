package sweep

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// CommandPinger delegates to the platform ping binary and treats a zero exit
// status as a reply.
type CommandPinger struct {
	Binary string
	GOOS   string
}

func NewCommandPinger() CommandPinger {
	return CommandPinger{Binary: "ping", GOOS: runtime.GOOS}
}

func (p CommandPinger) Ping(ctx context.Context, address string, timeout time.Duration) error {
	// give the binary a moment past its own wait before killing it
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	binary := p.Binary
	if binary == "" {
		binary = "ping"
	}
	return exec.CommandContext(ctx, binary, p.args(address, timeout)...).Run()
}

func (p CommandPinger) args(address string, timeout time.Duration) []string {
	goos := p.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.Itoa(ms), address}
	case "darwin":
		return []string{"-c", "1", "-W", strconv.Itoa(ms), address}
	default:
		// iputils takes fractional seconds
		secs := strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
		return []string{"-c", "1", "-W", secs, address}
	}
}
