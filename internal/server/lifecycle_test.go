package server

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeProcess simulates a server child. It exits when it receives
// the "stop" command (unless obeyStop is false), when killed, or
// when terminated externally via exit().
type fakeProcess struct {
	pid      int
	obeyStop bool
	writeErr error

	outReader *io.PipeReader
	outWriter *io.PipeWriter

	mu           sync.Mutex
	commands     []string
	killed       bool
	surviveKills int

	exitOnce sync.Once
	exitCh   chan struct{}
}

func newFakeProcess(pid int, obeyStop bool) *fakeProcess {
	reader, writer := io.Pipe()
	return &fakeProcess{
		pid:       pid,
		obeyStop:  obeyStop,
		outReader: reader,
		outWriter: writer,
		exitCh:    make(chan struct{}),
	}
}

func (p *fakeProcess) PID() int          { return p.pid }
func (p *fakeProcess) Stdout() io.Reader { return p.outReader }

func (p *fakeProcess) WriteLine(text string) error {
	if p.writeErr != nil {
		return p.writeErr
	}
	p.mu.Lock()
	p.commands = append(p.commands, text)
	p.mu.Unlock()
	if text == "stop" && p.obeyStop {
		p.exit()
	}
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.exitCh
	p.outWriter.Close()
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	survive := p.surviveKills > 0
	if survive {
		p.surviveKills--
	}
	p.mu.Unlock()
	if !survive {
		p.exit()
	}
	return nil
}

func (p *fakeProcess) exit() {
	p.exitOnce.Do(func() { close(p.exitCh) })
}

func (p *fakeProcess) emitLine(text string) {
	p.outWriter.Write([]byte(text + "\n"))
}

func (p *fakeProcess) receivedCommands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.commands...)
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// fakeSpawner records spawn attempts and hands out fake processes.
type fakeSpawner struct {
	mu       sync.Mutex
	obeyStop bool
	spawnErr error
	spawned  []*fakeProcess
	configs  []LaunchConfig
}

func (s *fakeSpawner) Spawn(cfg LaunchConfig) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spawnErr != nil {
		return nil, s.spawnErr
	}
	proc := newFakeProcess(1000+len(s.spawned), s.obeyStop)
	s.spawned = append(s.spawned, proc)
	s.configs = append(s.configs, cfg)
	return proc, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}

func (s *fakeSpawner) last() *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spawned) == 0 {
		return nil
	}
	return s.spawned[len(s.spawned)-1]
}

type fakeDetector struct {
	conflict *Conflict
	err      error
}

func (d *fakeDetector) Check(cfg LaunchConfig) (*Conflict, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.conflict != nil {
		return d.conflict, nil
	}
	return &Conflict{}, nil
}

func testLaunchConfig(t *testing.T) LaunchConfig {
	t.Helper()
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "server.jar")
	if err := os.WriteFile(jarPath, []byte("jar"), 0644); err != nil {
		t.Fatal(err)
	}
	return LaunchConfig{
		JarPath:    jarPath,
		WorkingDir: dir,
		MemoryMB:   2048,
		GamePort:   25565,
	}
}

func waitForState(t *testing.T, lm *LifecycleManager, want RunState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if lm.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state did not reach %s (currently %s)", want, lm.State())
}

func TestStartTransitionsToRunning(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if lm.State() != StateRunning {
		t.Fatalf("expected running, got %s", lm.State())
	}

	info := lm.Info()
	if info.PID == 0 {
		t.Fatal("expected a pid after start")
	}
	if info.Config == nil {
		t.Fatal("expected a config snapshot after start")
	}
}

func TestStartFailsWhenJarMissing(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	cfg := testLaunchConfig(t)
	cfg.JarPath = filepath.Join(t.TempDir(), "missing.jar")

	err := lm.Start(cfg)
	if !errors.Is(err, ErrJarNotFound) {
		t.Fatalf("expected ErrJarNotFound, got %v", err)
	}
	if lm.State() != StateStopped {
		t.Fatalf("state must remain stopped after failed start, got %s", lm.State())
	}
	if spawner.count() != 0 {
		t.Fatal("no child must be spawned when the jar is missing")
	}
}

func TestStartFailsWhenAlreadyRunning(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	cfg := testLaunchConfig(t)
	if err := lm.Start(cfg); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	err := lm.Start(cfg)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if spawner.count() != 1 {
		t.Fatalf("expected exactly one child, got %d", spawner.count())
	}
}

func TestStartRefusedOnDetectedConflict(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	detector := &fakeDetector{conflict: &Conflict{
		Processes: []ConflictingProcess{{PID: 4242, Cmdline: "java -jar server.jar"}},
	}}
	lm := NewLifecycleManager(spawner, detector)

	err := lm.Start(testLaunchConfig(t))
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if lm.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", lm.State())
	}
	if spawner.count() != 0 {
		t.Fatal("no child must be spawned on a detected conflict")
	}
}

func TestStartAllowedWhenOnlyPortBound(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	detector := &fakeDetector{conflict: &Conflict{PortBound: true}}
	lm := NewLifecycleManager(spawner, detector)

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("port probe alone must not refuse a start: %v", err)
	}
}

func TestStartRevertsOnSpawnFailure(t *testing.T) {
	spawner := &fakeSpawner{spawnErr: errors.New("exec: \"java\": executable file not found")}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	err := lm.Start(testLaunchConfig(t))
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if lm.State() != StateStopped {
		t.Fatalf("state must revert to stopped after spawn failure, got %s", lm.State())
	}
}

func TestStopWhenStoppedIsNoOp(t *testing.T) {
	lm := NewLifecycleManager(&fakeSpawner{}, &fakeDetector{})

	if err := lm.Stop(time.Second); err != nil {
		t.Fatalf("stop on a stopped server must succeed: %v", err)
	}
	if lm.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", lm.State())
	}
}

func TestStopGraceful(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := lm.Stop(5 * time.Second); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	waitForState(t, lm, StateStopped)

	proc := spawner.last()
	commands := proc.receivedCommands()
	if len(commands) != 1 || commands[0] != "stop" {
		t.Fatalf("expected a single stop command, got %v", commands)
	}
	if proc.wasKilled() {
		t.Fatal("graceful stop must not kill the child")
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: false}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	started := time.Now()
	if err := lm.Stop(100 * time.Millisecond); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	elapsed := time.Since(started)

	if !spawner.last().wasKilled() {
		t.Fatal("expected escalation to kill after timeout")
	}
	if elapsed > 3*time.Second {
		t.Fatalf("stop took too long: %v", elapsed)
	}
	waitForState(t, lm, StateStopped)
}

func TestOperationsRejectedWhileStopInFlight(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: false}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	cfg := testLaunchConfig(t)
	if err := lm.Start(cfg); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- lm.Stop(5 * time.Second) }()

	waitForState(t, lm, StateStopping)

	if err := lm.Start(cfg); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from start during an in-flight stop, got %v", err)
	}
	if err := lm.Stop(time.Second); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from an overlapping stop, got %v", err)
	}
	if spawner.count() != 1 {
		t.Fatalf("rejected start must not spawn, got %d children", spawner.count())
	}

	spawner.last().exit()
	if err := <-stopDone; err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	waitForState(t, lm, StateStopped)
}

func TestStopRetriesKillAfterIncomplete(t *testing.T) {
	defer func(prev time.Duration) { killGrace = prev }(killGrace)
	killGrace = 50 * time.Millisecond

	spawner := &fakeSpawner{obeyStop: false}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	spawner.last().surviveKills = 1

	err := lm.Stop(20 * time.Millisecond)
	if !errors.Is(err, ErrStopIncomplete) {
		t.Fatalf("expected ErrStopIncomplete, got %v", err)
	}
	if lm.State() != StateStopping {
		t.Fatalf("expected stopping after an incomplete stop, got %s", lm.State())
	}

	// A later stop must re-attempt the kill instead of erroring out.
	if err := lm.Stop(20 * time.Millisecond); err != nil {
		t.Fatalf("stop retry failed: %v", err)
	}
	waitForState(t, lm, StateStopped)

	commands := spawner.last().receivedCommands()
	if len(commands) != 1 || commands[0] != "stop" {
		t.Fatalf("retry must not resend the stop command, got %v", commands)
	}
}

func TestRestartReusesSnapshotConfig(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	cfg := testLaunchConfig(t)
	cfg.MemoryMB = 4096
	if err := lm.Start(cfg); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := lm.Restart(5 * time.Second); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if spawner.count() != 2 {
		t.Fatalf("expected two spawns, got %d", spawner.count())
	}
	if spawner.configs[1].MemoryMB != 4096 {
		t.Fatal("restart must reuse the snapshot of the last successful start")
	}
	if lm.State() != StateRunning {
		t.Fatalf("expected running after restart, got %s", lm.State())
	}
}

func TestRestartWithoutPreviousLaunch(t *testing.T) {
	lm := NewLifecycleManager(&fakeSpawner{}, &fakeDetector{})

	if err := lm.Restart(time.Second); !errors.Is(err, ErrNoPreviousLaunch) {
		t.Fatalf("expected ErrNoPreviousLaunch, got %v", err)
	}
}

func TestRestartLeavesStoppedWhenStartFails(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	cfg := testLaunchConfig(t)
	if err := lm.Start(cfg); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Make the jar disappear so the restart's start leg fails.
	if err := os.Remove(cfg.JarPath); err != nil {
		t.Fatal(err)
	}

	err := lm.Restart(5 * time.Second)
	if !errors.Is(err, ErrJarNotFound) {
		t.Fatalf("expected ErrJarNotFound, got %v", err)
	}
	waitForState(t, lm, StateStopped)
}

func TestSendCommandWhileStopped(t *testing.T) {
	lm := NewLifecycleManager(&fakeSpawner{}, &fakeDetector{})

	if err := lm.SendCommand("list"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestSendCommandWritesToInput(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := lm.SendCommand("say hello"); err != nil {
		t.Fatalf("send command failed: %v", err)
	}

	commands := spawner.last().receivedCommands()
	if len(commands) != 1 || commands[0] != "say hello" {
		t.Fatalf("expected [say hello], got %v", commands)
	}
}

func TestSendCommandWriteFailure(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	spawner.last().writeErr = errors.New("broken pipe")

	err := lm.SendCommand("list")
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
}

func TestUnexpectedExitTransitionsToStopped(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	var mu sync.Mutex
	var changes []StateChange
	lm.OnStateChange(func(ev StateChange) {
		mu.Lock()
		changes = append(changes, ev)
		mu.Unlock()
	})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Kill the child behind the supervisor's back.
	spawner.last().exit()

	waitForState(t, lm, StateStopped)

	mu.Lock()
	defer mu.Unlock()
	last := changes[len(changes)-1]
	if last.To != StateStopped || !last.Unexpected {
		t.Fatalf("expected an unexpected stop notification, got %+v", last)
	}
}

func TestConsoleLinesReachSubscriber(t *testing.T) {
	spawner := &fakeSpawner{obeyStop: true}
	lm := NewLifecycleManager(spawner, &fakeDetector{})

	if err := lm.Start(testLaunchConfig(t)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	relay, ok := lm.Relay()
	if !ok {
		t.Fatal("expected a relay while running")
	}
	lines, cancel := relay.Subscribe()
	defer cancel()

	proc := spawner.last()
	proc.emitLine("[12:00:00] [Server thread/INFO]: Done (2.5s)!")
	proc.emitLine("[12:00:05] [Server thread/INFO]: joined the game")

	for _, want := range []string{"Done", "joined"} {
		select {
		case line := <-lines:
			if !strings.Contains(line.Text, want) {
				t.Fatalf("expected line containing %q, got %q", want, line.Text)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for line containing %q", want)
		}
	}
}
