// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pluginhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/plughost/lib/clock"
	"github.com/bureau-foundation/plughost/lib/correlate"
	"github.com/bureau-foundation/plughost/lib/ipc"
	"github.com/bureau-foundation/plughost/lib/payload"
	"github.com/bureau-foundation/plughost/lib/stream"
	"github.com/bureau-foundation/plughost/lib/trust"
)

var (
	// ErrNotFound is returned for a handle with no live record.
	ErrNotFound = errors.New("pluginhost: no such plugin process")

	// ErrUnverified is returned by Spawn when trust verification is
	// required and the binary is unsigned or fails verification.
	ErrUnverified = errors.New("pluginhost: plugin binary failed verification")

	// ErrRegistryClosed is returned by Spawn after Close.
	ErrRegistryClosed = errors.New("pluginhost: registry is closed")
)

// DefaultTerminateGrace is how long Terminate waits after SIGTERM
// before sending SIGKILL, when Config leaves it zero.
const DefaultTerminateGrace = 5 * time.Second

// Handle identifies a spawned process within one Registry. Handles are
// never reused.
type Handle uint64

// EventFunc receives every Event frame a plugin sends. It runs on the
// process's inbound loop: a slow EventFunc delays that process's
// responses.
type EventFunc func(handle Handle, message ipc.Message)

// Config configures a Registry.
type Config struct {
	// Logger receives lifecycle logs and plugin stderr. Nil discards.
	Logger *slog.Logger

	// Clock times the terminate grace period and call timeouts. Nil
	// uses the real clock.
	Clock clock.Clock

	// TerminateGrace is the SIGTERM to SIGKILL delay. Zero selects
	// DefaultTerminateGrace.
	TerminateGrace time.Duration

	// Verifier checks SpawnOptions.Signature before exec. Nil skips
	// verification unless RequireVerification is set.
	Verifier *trust.Verifier

	// RequireVerification refuses any spawn that does not carry a
	// signature the Verifier accepts.
	RequireVerification bool

	// Compression is applied to CallValue arguments.
	Compression payload.Compression
}

// SpawnOptions are the per-process parameters of Spawn.
type SpawnOptions struct {
	// Name labels the process in logs and List. Defaults to the base
	// name of the executable path.
	Name string

	Args []string

	// Env is added to the host's environment for the child.
	Env map[string]string

	// Dir is the child's working directory. Empty inherits the host's.
	Dir string

	// Events receives the plugin's Event frames. Nil logs and drops
	// them.
	Events EventFunc

	// Signature is the manifest entry to verify before exec.
	Signature *trust.PluginSignature
}

// ProcessInfo is a snapshot of one process record.
type ProcessInfo struct {
	Handle   Handle
	Name     string
	Path     string
	PID      int
	Started  time.Time
	LastSeen time.Time
	Exited   bool
}

// Registry owns a set of plugin processes. Safe for concurrent use.
type Registry struct {
	logger *slog.Logger
	clock  clock.Clock
	config Config

	nextHandle atomic.Uint64

	mu        sync.RWMutex
	processes map[Handle]*process
	closed    bool
}

// NewRegistry returns an empty Registry.
func NewRegistry(config Config) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	if config.TerminateGrace <= 0 {
		config.TerminateGrace = DefaultTerminateGrace
	}
	return &Registry{
		logger:    logger,
		clock:     clk,
		config:    config,
		processes: make(map[Handle]*process),
	}
}

// Spawn verifies (when configured) and starts the executable at path,
// wires its pipes, and returns its handle. If the process cannot be
// started no record is created.
func (r *Registry) Spawn(path string, options SpawnOptions) (Handle, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return 0, ErrRegistryClosed
	}

	if err := r.verify(path, options.Signature); err != nil {
		return 0, err
	}

	name := options.Name
	if name == "" {
		name = filepath.Base(path)
	}

	cmd := exec.Command(path, options.Args...)
	cmd.Dir = options.Dir
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range options.Env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
	}
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("creating stdin pipe for %s: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("creating stdout pipe for %s: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("creating stderr pipe for %s: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting plugin %s: %w", name, err)
	}

	handle := Handle(r.nextHandle.Add(1))
	logger := r.logger.With("handle", uint64(handle), "plugin", name)
	proc := &process{
		handle:  handle,
		name:    name,
		path:    path,
		cmd:     cmd,
		stdin:   stdin,
		events:  options.Events,
		logger:  logger,
		clock:   r.clock,
		started: r.clock.Now(),
		exited:  make(chan struct{}),
	}
	proc.framer = stream.New(stream.Config{
		Reader:  stdout,
		Writer:  stdin,
		Handler: proc,
		Logger:  logger,
	})
	proc.correlator = correlate.New(proc.framer, r.clock)

	proc.start(stderr)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		proc.stop(r.config.TerminateGrace)
		return 0, ErrRegistryClosed
	}
	r.processes[handle] = proc
	r.mu.Unlock()

	logger.Info("plugin started", "path", path, "pid", cmd.Process.Pid)
	return handle, nil
}

// Open is Spawn returning a scoped handle.
func (r *Registry) Open(path string, options SpawnOptions) (*Plugin, error) {
	handle, err := r.Spawn(path, options)
	if err != nil {
		return nil, err
	}
	return &Plugin{registry: r, handle: handle}, nil
}

// Call sends method and payload to the process and waits for its
// answer. A timeout <= 0 waits until ctx is done.
func (r *Registry) Call(ctx context.Context, handle Handle, method string, data []byte, timeout time.Duration) ([]byte, error) {
	proc, err := r.lookup(handle)
	if err != nil {
		return nil, err
	}
	return proc.correlator.Call(ctx, method, data, timeout)
}

// CallValue encodes request with lib/payload, calls method, and decodes
// the result into response. A nil response discards the result.
func (r *Registry) CallValue(ctx context.Context, handle Handle, method string, request, response any, timeout time.Duration) error {
	arguments, err := payload.Marshal(request, r.config.Compression)
	if err != nil {
		return err
	}
	result, err := r.Call(ctx, handle, method, arguments, timeout)
	if err != nil {
		return err
	}
	if response == nil {
		return nil
	}
	return payload.Unmarshal(result, response)
}

// Notify sends a fire-and-forget Event to the process.
func (r *Registry) Notify(ctx context.Context, handle Handle, data []byte) error {
	proc, err := r.lookup(handle)
	if err != nil {
		return err
	}
	err = proc.framer.Send(ctx, ipc.NewEvent(proc.correlator.NextID(), data))
	if errors.Is(err, stream.ErrWriterStopped) {
		return fmt.Errorf("notifying %s: %w", proc.name, correlate.ErrChannelClosed)
	}
	return err
}

// Terminate removes the record for handle and stops the process:
// outstanding calls fail with correlate.ErrChannelClosed, stdin is
// closed, the process group gets SIGTERM and, after the grace period,
// SIGKILL. Terminate returns once the process has been reaped.
func (r *Registry) Terminate(handle Handle) error {
	r.mu.Lock()
	proc, ok := r.processes[handle]
	delete(r.processes, handle)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: handle %d", ErrNotFound, handle)
	}
	proc.stop(r.config.TerminateGrace)
	return nil
}

// List returns a snapshot of every record, sorted by handle.
func (r *Registry) List() []ProcessInfo {
	r.mu.RLock()
	infos := make([]ProcessInfo, 0, len(r.processes))
	for _, proc := range r.processes {
		infos = append(infos, proc.info())
	}
	r.mu.RUnlock()
	slices.SortFunc(infos, func(a, b ProcessInfo) int {
		switch {
		case a.Handle < b.Handle:
			return -1
		case a.Handle > b.Handle:
			return 1
		}
		return 0
	})
	return infos
}

// Close terminates every process and refuses further spawns.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	processes := r.processes
	r.processes = make(map[Handle]*process)
	r.mu.Unlock()

	var wait sync.WaitGroup
	for _, proc := range processes {
		wait.Add(1)
		go func() {
			defer wait.Done()
			proc.stop(r.config.TerminateGrace)
		}()
	}
	wait.Wait()
	return nil
}

func (r *Registry) lookup(handle Handle) (*process, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	proc, ok := r.processes[handle]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", ErrNotFound, handle)
	}
	return proc, nil
}

func (r *Registry) verify(path string, signature *trust.PluginSignature) error {
	if signature == nil || r.config.Verifier == nil {
		if r.config.RequireVerification {
			return fmt.Errorf("%w: %s has no signature or no verifier is configured", ErrUnverified, path)
		}
		return nil
	}
	ok, err := r.config.Verifier.Verify(path, *signature)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", path, err)
	}
	if !ok {
		r.logger.Warn("refusing plugin that failed verification", "path", path)
		return fmt.Errorf("%w: %s", ErrUnverified, path)
	}
	return nil
}

// Plugin is a spawned process whose lifetime is tied to the value:
// Close terminates it.
type Plugin struct {
	registry  *Registry
	handle    Handle
	closeOnce sync.Once
	closeErr  error
}

// Handle returns the registry handle.
func (p *Plugin) Handle() Handle { return p.handle }

func (p *Plugin) Call(ctx context.Context, method string, data []byte, timeout time.Duration) ([]byte, error) {
	return p.registry.Call(ctx, p.handle, method, data, timeout)
}

func (p *Plugin) CallValue(ctx context.Context, method string, request, response any, timeout time.Duration) error {
	return p.registry.CallValue(ctx, p.handle, method, request, response, timeout)
}

func (p *Plugin) Notify(ctx context.Context, data []byte) error {
	return p.registry.Notify(ctx, p.handle, data)
}

// Close terminates the process. Later calls return the first result.
// A process already removed by Registry.Close is not an error.
func (p *Plugin) Close() error {
	p.closeOnce.Do(func() {
		err := p.registry.Terminate(p.handle)
		if err != nil && !errors.Is(err, ErrNotFound) {
			p.closeErr = err
		}
	})
	return p.closeErr
}
