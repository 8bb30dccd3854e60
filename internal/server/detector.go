package server

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Detector checks whether a conflicting server instance is already
// active on the host before a spawn is attempted.
type Detector interface {
	Check(cfg LaunchConfig) (*Conflict, error)
}

// ConflictingProcess identifies a process that appears to be running
// the configured server already.
type ConflictingProcess struct {
	PID     int32  `json:"pid"`
	Cmdline string `json:"cmdline"`
}

// Conflict reports the two detection signals independently. They can
// disagree: a bound port may belong to an unrelated service, and a
// matching process may be bound to a different port. Both checks are
// best-effort and inherently racy; a spawn failure reported by the
// child itself is the authoritative signal.
type Conflict struct {
	Processes []ConflictingProcess `json:"processes"`
	PortBound bool                 `json:"port_bound"`
}

// Detected reports whether the process scan found a match. The port
// probe alone does not refuse a start.
func (c *Conflict) Detected() bool {
	return c != nil && len(c.Processes) > 0
}

// HostDetector scans the local process table and probes the game
// port.
type HostDetector struct {
	DialTimeout time.Duration
}

// NewHostDetector creates a detector with a default probe timeout.
func NewHostDetector() *HostDetector {
	return &HostDetector{DialTimeout: 500 * time.Millisecond}
}

// Check scans for a java process referencing the configured jar and
// probes the configured game port.
func (d *HostDetector) Check(cfg LaunchConfig) (*Conflict, error) {
	conflict := &Conflict{}

	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	jarBase := strings.ToLower(filepath.Base(cfg.JarPath))
	for _, proc := range procs {
		cmdline, err := proc.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}

		lower := strings.ToLower(cmdline)
		if !strings.Contains(lower, "java") {
			continue
		}
		if !strings.Contains(lower, jarBase) && !strings.Contains(lower, "minecraft") {
			continue
		}

		conflict.Processes = append(conflict.Processes, ConflictingProcess{
			PID:     proc.Pid,
			Cmdline: cmdline,
		})
	}

	if cfg.GamePort > 0 {
		conflict.PortBound = d.portBound(cfg.GamePort)
	}

	return conflict, nil
}

func (d *HostDetector) portBound(port int) bool {
	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
