package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

type State int

const (
	Idle State = iota
	Starting
	Running
	Completed
	Failed
	Stopped
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	case TimedOut:
		return "timed out"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Stopped || s == TimedOut
}

func (s State) Active() bool {
	return s == Starting || s == Running
}

// User-facing status strings
const (
	StatusStarting  = "Starting download..."
	StatusPreparing = "Preparing download..."
	StatusComplete  = "Download complete!"
	StatusStopped   = "Download stopped"
	StatusFailed    = "Download failed"
)

var (
	ErrAlreadyRunning = errors.New("a download is already running")
	ErrNotRunning     = errors.New("no download is running")
)

// Policy bounds how long a download may run. Absolute is measured from
// process start, Stall from the last recognized progress line.
type Policy struct {
	Absolute     time.Duration `yaml:"absolute"`
	Stall        time.Duration `yaml:"stall"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Grace        time.Duration `yaml:"grace"`
}

var DefaultPolicy = Policy{
	Absolute:     3600 * time.Second,
	Stall:        600 * time.Second,
	PollInterval: 10 * time.Second,
	Grace:        5 * time.Second,
}

func (p Policy) withDefaults() Policy {
	if p.Absolute <= 0 {
		p.Absolute = DefaultPolicy.Absolute
	}
	if p.Stall <= 0 {
		p.Stall = DefaultPolicy.Stall
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPolicy.PollInterval
	}
	if p.Grace <= 0 {
		p.Grace = DefaultPolicy.Grace
	}
	return p
}

func (p Policy) AbsoluteReason() string {
	return fmt.Sprintf("Download timeout (%s limit exceeded)", describe(p.Absolute, "min"))
}

func (p Policy) StallReason() string {
	return fmt.Sprintf("Download stalled (no progress for %s)", describe(p.Stall, "minutes"))
}

func describe(d time.Duration, minuteUnit string) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d %s", int(d/time.Minute), minuteUnit)
	}
	return d.String()
}

// Update is published by the controller on every state change and every
// recognized output line. Line carries the raw tool output.
type Update struct {
	State   State
	Percent float64
	Status  string
	Speed   string
	ETA     string
	Line    string
}

// Outcome describes how a run ended.
type Outcome struct {
	State    State
	Reason   string
	Output   string
	Err      error
	Duration time.Duration
}

// Snapshot is the controller's current shared status.
type Snapshot struct {
	State   State
	Percent float64
	Status  string
}
