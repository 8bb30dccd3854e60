package server

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/craftstack/mc-server-manager/internal/console"
)

// RunState is the supervisor's authoritative lifecycle state.
type RunState string

const (
	StateStopped  RunState = "stopped"
	StateStarting RunState = "starting"
	StateRunning  RunState = "running"
	StateStopping RunState = "stopping"
)

// StateChange is the asynchronous notification published on every
// transition. Unexpected is set when the child exited without a stop
// having been requested.
type StateChange struct {
	From       RunState  `json:"from"`
	To         RunState  `json:"to"`
	Timestamp  time.Time `json:"timestamp"`
	Unexpected bool      `json:"unexpected"`
	Reason     string    `json:"reason,omitempty"`
}

// Info is a point-in-time snapshot of the supervised child.
type Info struct {
	State         RunState      `json:"state"`
	PID           int           `json:"pid,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	Config        *LaunchConfig `json:"config,omitempty"`
}

// killGrace bounds how long Stop waits for exit confirmation after
// escalating to a kill signal.
var killGrace = 10 * time.Second

// LifecycleManager owns the single active server child and enforces
// the state machine over start/stop/restart/command operations.
// Control operations are serialized: a second operation while one is
// in flight fails fast with ErrBusy. The exit monitor goroutine is
// the only place a process exit is confirmed and the only writer of
// the Stopped transition for a live child.
type LifecycleManager struct {
	spawner  Spawner
	detector Detector

	mu         sync.Mutex
	busy       bool
	state      RunState
	proc       Process
	relay      *console.Relay
	exited     chan struct{}
	generation uint64
	startedAt  time.Time
	lastConfig *LaunchConfig

	listenerMu sync.Mutex
	listeners  []func(StateChange)
}

// NewLifecycleManager creates a stopped lifecycle manager.
func NewLifecycleManager(spawner Spawner, detector Detector) *LifecycleManager {
	return &LifecycleManager{
		spawner:  spawner,
		detector: detector,
		state:    StateStopped,
	}
}

// OnStateChange registers a listener invoked on every transition.
// Registration happens at wiring time, before operations begin.
func (lm *LifecycleManager) OnStateChange(fn func(StateChange)) {
	lm.listenerMu.Lock()
	defer lm.listenerMu.Unlock()
	lm.listeners = append(lm.listeners, fn)
}

// State reports the current run state. Never blocks on the child.
func (lm *LifecycleManager) State() RunState {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.state
}

// Info reports the current state plus process details.
func (lm *LifecycleManager) Info() Info {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	info := Info{State: lm.state, Config: lm.lastConfig}
	if lm.proc != nil {
		info.PID = lm.proc.PID()
		started := lm.startedAt
		info.StartedAt = &started
		info.UptimeSeconds = int64(time.Since(lm.startedAt).Seconds())
	}
	return info
}

// Relay returns the output relay of the current process instance.
func (lm *LifecycleManager) Relay() (*console.Relay, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.relay, lm.relay != nil
}

// Start spawns the server child from the given configuration.
func (lm *LifecycleManager) Start(cfg LaunchConfig) error {
	lm.mu.Lock()
	if lm.busy {
		lm.mu.Unlock()
		return ErrBusy
	}
	switch lm.state {
	case StateStopped:
	case StateRunning:
		lm.mu.Unlock()
		return ErrAlreadyRunning
	default:
		state := lm.state
		lm.mu.Unlock()
		return fmt.Errorf("%w (state: %s)", ErrNotStopped, state)
	}
	lm.busy = true
	ev := lm.setStateLocked(StateStarting, false, "start requested")
	lm.mu.Unlock()
	lm.emit(ev)

	fail := func(err error) error {
		lm.mu.Lock()
		lm.busy = false
		ev := lm.setStateLocked(StateStopped, false, "start failed")
		lm.mu.Unlock()
		lm.emit(ev)
		return err
	}

	if _, err := os.Stat(cfg.JarPath); err != nil {
		return fail(fmt.Errorf("%w: %s", ErrJarNotFound, cfg.JarPath))
	}

	if lm.detector != nil {
		conflict, err := lm.detector.Check(cfg)
		if err != nil {
			log.Printf("[Lifecycle] Instance detection failed: %v", err)
		} else {
			if conflict.Detected() {
				first := conflict.Processes[0]
				return fail(fmt.Errorf("%w: conflicting process %d (%s)", ErrAlreadyRunning, first.PID, first.Cmdline))
			}
			if conflict.PortBound {
				// Warning only. The port may belong to something
				// unrelated; a bind failure reported by the child is
				// the authoritative signal.
				log.Printf("[Lifecycle] Port %d is already bound; the server may fail to start", cfg.GamePort)
			}
		}
	}

	log.Printf("[Lifecycle] Starting server (jar: %s, memory: %dM)...", cfg.JarPath, cfg.MemoryMB)
	proc, err := lm.spawner.Spawn(cfg)
	if err != nil {
		return fail(&SpawnError{Err: err})
	}

	relay := console.NewRelay()
	go relay.Run(proc.Stdout())

	lm.mu.Lock()
	lm.generation++
	generation := lm.generation
	lm.proc = proc
	lm.relay = relay
	snapshot := cfg
	lm.lastConfig = &snapshot
	lm.startedAt = time.Now()
	lm.exited = make(chan struct{})
	exited := lm.exited
	lm.busy = false
	ev = lm.setStateLocked(StateRunning, false, fmt.Sprintf("spawned pid %d", proc.PID()))
	lm.mu.Unlock()
	lm.emit(ev)

	go lm.monitor(generation, proc, relay, exited)

	log.Printf("[Lifecycle] Server started (pid: %d)", proc.PID())
	return nil
}

// Stop requests a graceful shutdown and escalates to a kill signal
// when the child does not exit within the timeout. Calling Stop on a
// stopped server is a no-op.
func (lm *LifecycleManager) Stop(timeout time.Duration) error {
	lm.mu.Lock()
	if lm.busy {
		lm.mu.Unlock()
		return ErrBusy
	}
	switch lm.state {
	case StateStopped:
		lm.mu.Unlock()
		return nil
	case StateRunning, StateStopping:
	default:
		state := lm.state
		lm.mu.Unlock()
		return fmt.Errorf("%w (state: %s)", ErrNotRunning, state)
	}
	retry := lm.state == StateStopping
	lm.busy = true
	proc := lm.proc
	exited := lm.exited
	var ev StateChange
	if !retry {
		ev = lm.setStateLocked(StateStopping, false, "stop requested")
	}
	lm.mu.Unlock()
	if retry {
		// A previous stop already timed out after killing; skip the
		// graceful phase and re-attempt the kill until the monitor
		// confirms the exit.
		log.Printf("[Lifecycle] Retrying forced stop...")
		return lm.forceKill(proc, exited)
	}
	lm.emit(ev)

	log.Printf("[Lifecycle] Sending stop command (timeout: %v)...", timeout)
	if err := proc.WriteLine("stop"); err != nil {
		// Input stream already closed: the child is likely dead and
		// the monitor will confirm the exit below.
		log.Printf("[Lifecycle] Failed to send stop command: %v", err)
	}

	select {
	case <-exited:
		log.Printf("[Lifecycle] Server stopped gracefully")
	case <-time.After(timeout):
		log.Printf("[Lifecycle] Graceful shutdown timeout, killing process...")
		return lm.forceKill(proc, exited)
	}

	lm.mu.Lock()
	lm.busy = false
	lm.mu.Unlock()
	return nil
}

// forceKill signals the child and waits a bounded grace period for the
// monitor to confirm the exit. On ErrStopIncomplete the state remains
// Stopping and a later Stop lands back here.
func (lm *LifecycleManager) forceKill(proc Process, exited chan struct{}) error {
	if err := proc.Kill(); err != nil {
		log.Printf("[Lifecycle] Kill failed: %v", err)
	}

	select {
	case <-exited:
		log.Printf("[Lifecycle] Server stopped (forced)")
	case <-time.After(killGrace):
		lm.mu.Lock()
		lm.busy = false
		lm.mu.Unlock()
		return ErrStopIncomplete
	}

	lm.mu.Lock()
	lm.busy = false
	lm.mu.Unlock()
	return nil
}

// Restart stops the child and starts it again with the snapshot of
// the last successful start. If the stop succeeds but the start
// fails, the server remains stopped.
func (lm *LifecycleManager) Restart(timeout time.Duration) error {
	lm.mu.Lock()
	last := lm.lastConfig
	lm.mu.Unlock()
	if last == nil {
		return ErrNoPreviousLaunch
	}

	if err := lm.Stop(timeout); err != nil {
		return fmt.Errorf("restart: %w", err)
	}

	if err := lm.Start(*last); err != nil {
		return fmt.Errorf("restart: %w", err)
	}

	return nil
}

// SendCommand writes one operator command to the child's input.
func (lm *LifecycleManager) SendCommand(text string) error {
	lm.mu.Lock()
	if lm.state != StateRunning {
		state := lm.state
		lm.mu.Unlock()
		return fmt.Errorf("%w (state: %s)", ErrNotRunning, state)
	}
	proc := lm.proc
	lm.mu.Unlock()

	if err := proc.WriteLine(text); err != nil {
		// A broken input stream means the child died; the monitor
		// confirms and publishes the Stopped transition.
		return &WriteError{Err: err}
	}
	return nil
}

// monitor waits for the child to exit and for its output stream to
// drain, then performs the single authoritative Stopped transition.
func (lm *LifecycleManager) monitor(generation uint64, proc Process, relay *console.Relay, exited chan struct{}) {
	waitErr := proc.Wait()
	<-relay.Done()

	lm.mu.Lock()
	if lm.generation != generation {
		lm.mu.Unlock()
		close(exited)
		return
	}
	from := lm.state
	lm.proc = nil
	lm.relay = nil
	unexpected := from == StateRunning
	reason := "exit confirmed"
	if waitErr != nil {
		reason = fmt.Sprintf("exit confirmed: %v", waitErr)
	}
	ev := lm.setStateLocked(StateStopped, unexpected, reason)
	lm.mu.Unlock()

	close(exited)
	if unexpected {
		log.Printf("[Lifecycle] Server exited unexpectedly: %v", waitErr)
	}
	lm.emit(ev)
}

func (lm *LifecycleManager) setStateLocked(to RunState, unexpected bool, reason string) StateChange {
	ev := StateChange{
		From:       lm.state,
		To:         to,
		Timestamp:  time.Now(),
		Unexpected: unexpected,
		Reason:     reason,
	}
	lm.state = to
	return ev
}

func (lm *LifecycleManager) emit(ev StateChange) {
	lm.listenerMu.Lock()
	listeners := make([]func(StateChange), len(lm.listeners))
	copy(listeners, lm.listeners)
	lm.listenerMu.Unlock()

	for _, listener := range listeners {
		listener(ev)
	}
}
