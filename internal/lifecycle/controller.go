// Package lifecycle runs one external download process at a time, turns its
// output into progress updates and ends it on request, on timeout or when it
// stops making progress.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/command"
	"github.com/tanq16/clipr/internal/errs"
	"github.com/tanq16/clipr/internal/progress"
	"github.com/tanq16/clipr/internal/request"
	"github.com/tanq16/clipr/internal/tools"
)

const updateBuffer = 256

// DurationProber reports the running time of a local media file. It lets the
// controller express ffmpeg progress as a percentage.
type DurationProber interface {
	LocalDuration(ctx context.Context, path string) (time.Duration, error)
}

type invocation struct {
	tool   string
	args   []string
	parser progress.Parser
	output string
}

// Controller owns at most one running tool process. Start and Stop are
// serialized; all state it exposes is guarded by mu.
type Controller struct {
	paths   tools.Paths
	policy  Policy
	prober  DurationProber
	updates chan Update

	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	percent float64
	status  string
	proc    *process
	last    Outcome
}

func New(paths tools.Paths, policy Policy, prober DurationProber) *Controller {
	return &Controller{
		paths:   paths,
		policy:  policy.withDefaults(),
		prober:  prober,
		updates: make(chan Update, updateBuffer),
	}
}

// Updates delivers progress and state changes. Delivery is best effort: when
// the consumer falls behind, intermediate updates are dropped. Use Wait for
// the authoritative result of a run.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Percent: c.percent, Status: c.status}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start launches the tool for req and returns once the process is running.
// ctx bounds only the preparation (dependency and duration checks); the
// process itself lives until it exits, Stop is called, or the watchdog fires.
func (c *Controller) Start(ctx context.Context, req request.DownloadRequest) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.state = Starting
	c.percent = 0
	c.status = StatusStarting
	c.mu.Unlock()
	c.publish(Update{State: Starting, Status: StatusStarting})

	inv, err := c.prepare(ctx, req)
	if err != nil {
		log.Error().Str("op", "lifecycle/start").Err(err).Msg("download rejected")
		c.setIdle(Outcome{State: Failed, Reason: StatusFailed, Err: err})
		return err
	}

	log.Debug().Str("op", "lifecycle/start").Msgf("executing %s %s", inv.tool, strings.Join(inv.args, " "))
	p, err := spawn(inv.tool, inv.args)
	if err != nil {
		err = errs.E(errs.KindOf(err), "lifecycle/start", fmt.Errorf("error starting %s: %w", inv.tool, err))
		log.Error().Str("op", "lifecycle/start").Err(err).Msg("spawn failed")
		c.mu.Lock()
		c.state = Failed
		c.status = StatusFailed
		c.mu.Unlock()
		c.publish(Update{State: Failed, Status: StatusFailed})
		c.setIdle(Outcome{State: Failed, Reason: StatusFailed, Err: err})
		return err
	}

	c.mu.Lock()
	c.state = Running
	c.status = StatusPreparing
	c.proc = p
	c.mu.Unlock()
	c.publish(Update{State: Running, Status: StatusPreparing})

	go c.watch(p)
	go c.read(p, inv)
	return nil
}

func (c *Controller) prepare(ctx context.Context, req request.DownloadRequest) (invocation, error) {
	if req.Kind().Remote() {
		if err := c.paths.Require(tools.Ytdlp, tools.FFmpeg); err != nil {
			return invocation{}, err
		}
		return invocation{
			tool: c.paths.Ytdlp,
			args: command.Download(req, c.paths),
		}, nil
	}

	if err := c.paths.Require(tools.FFmpeg); err != nil {
		return invocation{}, err
	}
	out := command.LocalOutputPath(req)
	inv := invocation{
		tool:   c.paths.FFmpeg,
		args:   command.Local(req, out),
		output: out,
	}
	if trim, ok := req.Trim(); ok {
		inv.parser.Duration = time.Duration(trim.Duration()) * time.Second
	} else if c.prober != nil {
		d, err := c.prober.LocalDuration(ctx, req.Source())
		if err != nil {
			log.Warn().Str("op", "lifecycle/prepare").Err(err).Msg("could not read duration, progress will not be shown")
		}
		inv.parser.Duration = d
	}
	return inv, nil
}

// read consumes the merged output until EOF or cancellation, then waits for
// the process to exit and settles the outcome.
func (c *Controller) read(p *process, inv invocation) {
	scanner := newScanner(p)
	destination := inv.output
	lastError := ""
	for scanner.Scan() {
		if p.stopping.Load() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR") {
			lastError = line
		}
		if dest, ok := progress.Destination(line); ok {
			destination = dest
		}
		ev, ok := inv.parser.Parse(line)
		if !ok {
			c.publish(Update{State: Running, Line: line})
			continue
		}
		p.touch()
		c.mu.Lock()
		if ev.Percent != nil {
			c.percent = *ev.Percent
		}
		c.status = ev.Status()
		u := Update{State: Running, Percent: c.percent, Status: c.status, Speed: ev.Speed, ETA: ev.ETA, Line: line}
		c.mu.Unlock()
		c.publish(u)
	}
	if err := scanner.Err(); err != nil && !p.stopping.Load() {
		log.Warn().Str("op", "lifecycle/read").Err(err).Msg("error reading tool output, draining")
		io.Copy(io.Discard, p.output)
	}
	p.output.Close()
	<-p.exited
	c.finish(p, destination, lastError)
}

// watch enforces the policy until the process exits.
func (c *Controller) watch(p *process) {
	ticker := time.NewTicker(c.policy.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.exited:
			return
		case <-ticker.C:
			if time.Since(p.started) > c.policy.Absolute {
				c.terminate(p, termination{state: TimedOut, reason: c.policy.AbsoluteReason(), kind: errs.ProcessTimeout})
				return
			}
			if p.sinceProgress() > c.policy.Stall {
				c.terminate(p, termination{state: TimedOut, reason: c.policy.StallReason(), kind: errs.ProcessStalled})
				return
			}
		}
	}
}

// terminate asks the process group to exit, escalating to a kill after the
// grace period. Only the first caller's reason is kept.
func (c *Controller) terminate(p *process, t termination) {
	if !p.setTermination(t) {
		<-p.exited
		return
	}
	p.stopping.Store(true)
	log.Info().Str("op", "lifecycle/terminate").Msgf("terminating pid %d: %s", p.cmd.Process.Pid, t.reason)
	if err := interrupt(p.cmd); err != nil {
		log.Debug().Str("op", "lifecycle/terminate").Err(err).Msg("interrupt failed")
	}
	select {
	case <-p.exited:
		return
	case <-time.After(c.policy.Grace):
	}
	log.Warn().Str("op", "lifecycle/terminate").Msgf("pid %d ignored termination for %s, killing", p.cmd.Process.Pid, c.policy.Grace)
	if err := kill(p.cmd); err != nil {
		log.Debug().Str("op", "lifecycle/terminate").Err(err).Msg("kill failed")
	}
	<-p.exited
}

func (c *Controller) finish(p *process, destination, lastError string) {
	p.setTermination(termination{})
	out := Outcome{Output: destination, Duration: time.Since(p.started)}
	percent := 0.0
	switch {
	case p.term.state != Idle:
		out.State = p.term.state
		out.Reason = p.term.reason
		if p.term.kind != errs.UnexpectedFailure {
			out.Err = errs.E(p.term.kind, "lifecycle/watchdog", errors.New(p.term.reason))
		}
	case p.waitErr == nil:
		out.State = Completed
		out.Reason = StatusComplete
		percent = 100
	default:
		out.State = Failed
		out.Reason = StatusFailed
		detail := lastError
		if detail == "" {
			detail = p.waitErr.Error()
		}
		out.Err = errs.E(errs.TransientToolFailure, "lifecycle/run", fmt.Errorf("%s: %w", detail, p.waitErr))
		c.mu.Lock()
		percent = c.percent
		c.mu.Unlock()
	}
	p.outcome = out

	logEvent := log.Info()
	if out.State != Completed {
		logEvent = log.Warn().Err(out.Err)
	}
	logEvent.Str("op", "lifecycle/finish").Msgf("%s after %s: %s", out.State, out.Duration.Round(time.Millisecond), out.Reason)

	c.mu.Lock()
	c.state = out.State
	c.percent = percent
	c.status = out.Reason
	c.mu.Unlock()
	c.publish(Update{State: out.State, Percent: percent, Status: out.Reason})

	c.setIdle(out)
	close(p.done)
}

// setIdle returns the controller to Idle and remembers the outcome.
func (c *Controller) setIdle(out Outcome) {
	c.mu.Lock()
	c.state = Idle
	c.proc = nil
	c.last = out
	if out.State == Stopped || out.State == TimedOut {
		c.percent = 0
	}
	snapshot := Update{State: Idle, Percent: c.percent, Status: c.status}
	c.mu.Unlock()
	c.publish(snapshot)
}

// Stop terminates the running process, waits for it to be reaped and resets
// progress to zero.
func (c *Controller) Stop() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.mu.Lock()
	p := c.proc
	c.mu.Unlock()
	if p == nil {
		return ErrNotRunning
	}
	c.terminate(p, termination{state: Stopped, reason: StatusStopped})
	<-p.done
	return nil
}

// Wait blocks until the current run ends and returns its outcome. With no
// run in progress it returns the previous outcome.
func (c *Controller) Wait() Outcome {
	c.mu.Lock()
	p := c.proc
	last := c.last
	c.mu.Unlock()
	if p == nil {
		return last
	}
	<-p.done
	return p.outcome
}

func (c *Controller) publish(u Update) {
	select {
	case c.updates <- u:
	default:
	}
}
