package server

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// LaunchConfig is the immutable snapshot taken at spawn time.
// Configuration edits made while a child is running apply on the
// next start, never to the in-flight process.
type LaunchConfig struct {
	JavaPath    string
	JarPath     string
	WorkingDir  string
	MemoryMB    int
	MinMemoryMB int
	GamePort    int
	ServerArgs  []string
}

// Process is one spawned server child. The lifecycle manager is the
// sole owner; nothing else touches the handle.
type Process interface {
	// PID returns the child's process id.
	PID() int

	// Stdout returns the merged stdout/stderr stream.
	Stdout() io.Reader

	// WriteLine writes one command line to the child's stdin.
	WriteLine(text string) error

	// Wait blocks until the child exits. Called exactly once, by the
	// exit monitor.
	Wait() error

	// Kill forcefully terminates the child.
	Kill() error
}

// Spawner creates server processes. The java implementation is used
// in production; tests substitute their own.
type Spawner interface {
	Spawn(cfg LaunchConfig) (Process, error)
}

// JavaSpawner launches the server jar with the java runtime.
type JavaSpawner struct{}

// Spawn builds and starts the java invocation.
func (JavaSpawner) Spawn(cfg LaunchConfig) (Process, error) {
	javaPath := cfg.JavaPath
	if strings.TrimSpace(javaPath) == "" {
		javaPath = "java"
	}

	cmd := exec.Command(javaPath, javaArgs(cfg)...)
	cmd.Dir = cfg.WorkingDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	// stderr is merged into the console stream, matching how the
	// server's own log output interleaves.
	outReader, outWriter := io.Pipe()
	cmd.Stdout = outWriter
	cmd.Stderr = outWriter

	if err := cmd.Start(); err != nil {
		stdin.Close()
		outWriter.Close()
		return nil, err
	}

	return &javaProcess{
		cmd:       cmd,
		stdin:     stdin,
		outReader: outReader,
		outWriter: outWriter,
	}, nil
}

// javaArgs builds the interpreter arguments. Memory flags follow the
// conventional -Xmx/-Xms pair; -Xms falls back to -Xmx when no
// minimum is configured.
func javaArgs(cfg LaunchConfig) []string {
	minMemory := cfg.MinMemoryMB
	if minMemory <= 0 {
		minMemory = cfg.MemoryMB
	}

	args := []string{
		fmt.Sprintf("-Xmx%dM", cfg.MemoryMB),
		fmt.Sprintf("-Xms%dM", minMemory),
		"-jar",
		cfg.JarPath,
	}
	if len(cfg.ServerArgs) > 0 {
		return append(args, cfg.ServerArgs...)
	}
	return append(args, "nogui")
}

type javaProcess struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	outReader *io.PipeReader
	outWriter *io.PipeWriter

	writeMu sync.Mutex
}

func (p *javaProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *javaProcess) Stdout() io.Reader {
	return p.outReader
}

func (p *javaProcess) WriteLine(text string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := io.WriteString(p.stdin, text+"\n")
	return err
}

func (p *javaProcess) Wait() error {
	err := p.cmd.Wait()
	// Closing the writer ends the relay's read loop with EOF.
	p.outWriter.Close()
	p.stdin.Close()
	return err
}

func (p *javaProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
