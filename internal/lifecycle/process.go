package lifecycle

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tanq16/clipr/internal/errs"
)

const maxLineSize = 1024 * 1024

// termination records why the controller ended a process early.
type termination struct {
	state  State
	reason string
	kind   errs.Kind
}

// process is the single live tool invocation owned by a Controller.
type process struct {
	cmd          *exec.Cmd
	output       *os.File
	started      time.Time
	lastProgress atomic.Int64
	stopping     atomic.Bool
	exited       chan struct{}
	waitErr      error
	done         chan struct{}
	outcome      Outcome

	termOnce sync.Once
	term     termination
}

// spawn starts name with stdout and stderr merged into one pipe.
func spawn(name string, args []string) (*process, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}
	pw.Close()
	now := time.Now()
	p := &process{
		cmd:     cmd,
		output:  pr,
		started: now,
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.lastProgress.Store(now.UnixNano())
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

func (p *process) touch() {
	p.lastProgress.Store(time.Now().UnixNano())
}

func (p *process) sinceProgress() time.Duration {
	return time.Since(time.Unix(0, p.lastProgress.Load()))
}

// setTermination records t unless the process already has an end reason.
// It reports whether t was recorded.
func (p *process) setTermination(t termination) bool {
	recorded := false
	p.termOnce.Do(func() {
		p.term = t
		recorded = true
	})
	return recorded
}

// scanLines splits on \n or \r so carriage-return progress redraws still
// arrive as separate lines.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func newScanner(p *process) *bufio.Scanner {
	scanner := bufio.NewScanner(p.output)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split(scanLines)
	return scanner
}
