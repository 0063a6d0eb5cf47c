// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pluginhost

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/plughost/lib/clock"
	"github.com/bureau-foundation/plughost/lib/correlate"
	"github.com/bureau-foundation/plughost/lib/ipc"
	"github.com/bureau-foundation/plughost/lib/stream"
)

// maxStderrLine bounds one logged stderr line.
const maxStderrLine = 64 * 1024

// process is one spawned plugin. It implements stream.Handler for its
// own framer.
type process struct {
	handle Handle
	name   string
	path   string

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	framer     *stream.Framer
	correlator *correlate.Correlator
	events     EventFunc
	logger     *slog.Logger
	clock      clock.Clock

	started  time.Time
	lastSeen atomic.Int64

	stderrDone chan struct{}
	exited     chan struct{}

	stopOnce sync.Once
}

var _ stream.Handler = (*process)(nil)

func (p *process) start(stderr io.Reader) {
	p.stderrDone = make(chan struct{})
	go p.drainStderr(stderr)
	p.framer.Start()
	go p.watch()
}

// watch reaps the process once its stdout is exhausted. os/exec
// requires every pipe read to finish before Wait.
func (p *process) watch() {
	<-p.framer.Done()
	p.correlator.Close()
	p.framer.Close()
	<-p.stderrDone

	err := p.cmd.Wait()
	close(p.exited)

	if err != nil {
		p.logger.Info("plugin exited", "error", err)
	} else {
		p.logger.Info("plugin exited")
	}
	if readErr := p.framer.Err(); readErr != nil {
		p.logger.Warn("plugin connection ended with an error", "error", readErr)
	}
}

func (p *process) drainStderr(stderr io.Reader) {
	defer close(p.stderrDone)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxStderrLine)
	for scanner.Scan() {
		p.logger.Info("plugin output", "stream", "stderr", "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		p.logger.Debug("stderr drain stopped", "error", err)
		// Keep the pipe drained so the plugin never blocks on a full
		// stderr buffer.
		io.Copy(io.Discard, stderr)
	}
}

// stop fails outstanding calls, closes stdin, and signals the process
// group until the process has been reaped.
func (p *process) stop(grace time.Duration) {
	p.stopOnce.Do(func() {
		p.correlator.Close()
		p.framer.Close()
		p.stdin.Close()

		select {
		case <-p.exited:
			return
		default:
		}

		if err := signalGroup(p.cmd, terminateSignal); err != nil {
			p.logger.Debug("SIGTERM failed", "error", err)
		}
		timer := p.clock.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.exited:
			p.logger.Info("plugin terminated")
			return
		case <-timer.C:
		}

		p.logger.Warn("plugin ignored SIGTERM, killing", "grace", grace)
		if err := signalGroup(p.cmd, killSignal); err != nil {
			p.logger.Debug("SIGKILL failed", "error", err)
		}
		<-p.exited
	})
}

func (p *process) info() ProcessInfo {
	info := ProcessInfo{
		Handle:  p.handle,
		Name:    p.name,
		Path:    p.path,
		PID:     p.cmd.Process.Pid,
		Started: p.started,
	}
	if seen := p.lastSeen.Load(); seen != 0 {
		info.LastSeen = time.Unix(0, seen)
	}
	select {
	case <-p.exited:
		info.Exited = true
	default:
	}
	return info
}

func (p *process) touch() {
	p.lastSeen.Store(p.clock.Now().UnixNano())
}

func (p *process) HandleResponse(message ipc.Message) bool {
	p.touch()
	return p.correlator.Resolve(message)
}

func (p *process) HandleEvent(message ipc.Message) {
	p.touch()
	switch message.Kind {
	case ipc.KindEvent:
		if p.events != nil {
			p.events(p.handle, message)
			return
		}
		p.logger.Debug("dropping event with no sink", "message_id", message.ID)
	case ipc.KindPing:
		// Off the inbound loop: a full outbound queue must not stall
		// reading.
		go p.reply(ipc.NewPong(message.ID))
	case ipc.KindPong:
		p.logger.Debug("pong", "message_id", message.ID)
	case ipc.KindCall:
		go p.reply(ipc.NewError(message.ID, "host does not accept calls"))
	}
}

func (p *process) reply(message ipc.Message) {
	if err := p.framer.Send(context.Background(), message); err != nil {
		p.logger.Debug("reply not sent",
			"message_id", message.ID,
			"kind", message.Kind.String(),
			"error", err,
		)
	}
}
