// Package output owns the terminal. Manager keeps one entry per tracked job
// (a download, a probe, an upload) and periodically redraws them in place.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
)

type Entry struct {
	ID          int
	Label       string
	Status      string
	Message     string
	Percent     float64
	HasProgress bool
	Speed       string
	ETA         string
	Details     []string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

type Manager struct {
	out         io.Writer
	live        bool
	mutex       sync.RWMutex
	entries     map[int]*Entry
	count       int
	numLines    int
	maxStreams  int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	displayWg   sync.WaitGroup
	started     bool
}

// NewManager draws to stdout, redrawing in place only when it is a terminal.
func NewManager() *Manager {
	return NewManagerTo(os.Stdout, IsTerminal())
}

func NewManagerTo(out io.Writer, live bool) *Manager {
	return &Manager{
		out:         out,
		live:        live,
		entries:     make(map[int]*Entry),
		maxStreams:  5,
		doneCh:      make(chan struct{}),
		displayTick: 200 * time.Millisecond,
	}
}

func (m *Manager) Register(label string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.count++
	now := time.Now()
	m.entries[m.count] = &Entry{
		ID:          m.count,
		Label:       label,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
	}
	return m.count
}

func (m *Manager) update(id int, fn func(e *Entry)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if e, ok := m.entries[id]; ok {
		fn(e)
		e.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.update(id, func(e *Entry) { e.Message = message })
}

func (m *Manager) SetStatus(id int, status string) {
	m.update(id, func(e *Entry) { e.Status = status })
}

func (m *Manager) SetProgress(id int, percent float64, speed, eta string) {
	m.update(id, func(e *Entry) {
		e.Status = StatusActive
		e.Percent = percent
		e.HasProgress = true
		e.Speed = speed
		e.ETA = eta
	})
}

func (m *Manager) ClearProgress(id int) {
	m.update(id, func(e *Entry) {
		e.Percent = 0
		e.HasProgress = false
		e.Speed = ""
		e.ETA = ""
	})
}

// AddDetail appends a line that stays visible after the entry completes.
func (m *Manager) AddDetail(id int, detail string) {
	m.update(id, func(e *Entry) { e.Details = append(e.Details, detail) })
}

func (m *Manager) AddStreamLine(id int, line string) {
	m.update(id, func(e *Entry) {
		e.StreamLines = append(e.StreamLines, wrapText(line, 6)...)
		if len(e.StreamLines) > m.maxStreams {
			e.StreamLines = e.StreamLines[len(e.StreamLines)-m.maxStreams:]
		}
	})
}

func (m *Manager) Complete(id int, message string) {
	m.update(id, func(e *Entry) {
		e.StreamLines = nil
		e.HasProgress = false
		if message == "" {
			message = fmt.Sprintf("Completed %s", e.Label)
		}
		e.Message = message
		e.Complete = true
		e.Status = StatusSuccess
	})
}

// Finish marks id complete with an arbitrary final status, such as a
// warning for a stopped download.
func (m *Manager) Finish(id int, status, message string) {
	m.update(id, func(e *Entry) {
		e.StreamLines = nil
		e.HasProgress = false
		e.Message = message
		e.Complete = true
		e.Status = status
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return
	}
	e.Complete = true
	e.HasProgress = false
	e.Status = StatusError
	e.Error = err
	e.LastUpdated = time.Now()
	m.errors = append(m.errors, ErrorReport{Label: e.Label, Error: err, Time: e.LastUpdated})
}

func (m *Manager) Entry(id int) (Entry, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func statusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(symbolPass)
	case StatusError:
		return errorStyle.Render(symbolFail)
	case StatusWarning:
		return warningStyle.Render(symbolWarning)
	case StatusPending:
		return pendingStyle.Render(symbolPending)
	default:
		return infoStyle.Render(symbolBullet)
	}
}

func styleMessage(status, message string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(message)
	case StatusError:
		return errorStyle.Render(message)
	case StatusWarning:
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

// Render draws every entry in registration order, limited to maxLines.
func (m *Manager) Render(maxLines int) (string, int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var b strings.Builder
	lines := 0
	emit := func(s string) bool {
		if maxLines > 0 && lines >= maxLines {
			return false
		}
		b.WriteString(s)
		b.WriteByte('\n')
		lines++
		return true
	}
	indent := strings.Repeat(" ", 6)
	for id := 1; id <= m.count; id++ {
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		elapsed := time.Since(e.StartTime).Round(time.Second)
		if e.Complete {
			elapsed = e.LastUpdated.Sub(e.StartTime).Round(time.Second)
		}
		message := e.Message
		if message == "" {
			message = e.Label
		}
		if !emit(fmt.Sprintf("  %s %s %s", statusIndicator(e.Status), debugStyle.Render(elapsed.String()), styleMessage(e.Status, message))) {
			break
		}
		for _, d := range e.Details {
			emit(indent + detailStyle.Render(d))
		}
		if e.HasProgress {
			line := ProgressBar(e.Percent, progressWidth)
			if e.Speed != "" {
				line += debugStyle.Render(e.Speed)
			}
			if e.ETA != "" {
				line += debugStyle.Render(fmt.Sprintf(" %s ETA %s", symbolBullet, e.ETA))
			}
			emit(indent + line)
		}
		for _, s := range e.StreamLines {
			emit(indent + streamStyle.Render(s))
		}
	}
	return b.String(), lines
}

func (m *Manager) redraw() {
	_, height := terminalSize()
	frame, lines := m.Render(height - 3)
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	io.WriteString(m.out, frame)
	m.numLines = lines
}

// StartDisplay begins periodic redraws on a terminal. Without one, nothing
// is drawn until StopDisplay prints the final frame.
func (m *Manager) StartDisplay() {
	m.started = true
	if !m.live {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.redraw()
			case <-m.doneCh:
				m.redraw()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	if !m.started {
		return
	}
	m.started = false
	close(m.doneCh)
	m.displayWg.Wait()
	if !m.live {
		frame, _ := m.Render(0)
		io.WriteString(m.out, frame)
	}
	m.ShowSummary()
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.count > 1 {
		var success, failures int
		for _, e := range m.entries {
			switch e.Status {
			case StatusSuccess:
				success++
			case StatusError:
				failures++
			}
		}
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "  "+summaryStyle.Render(fmt.Sprintf("Completed %d of %d", success, m.count)))
		if failures > 0 {
			fmt.Fprintln(m.out, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, m.count)))
		}
	}
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+errorStyle.Bold(true).Render("Errors:"))
	for i, r := range m.errors {
		fmt.Fprintf(m.out, "    %s %s %s\n",
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", r.Time.Format("15:04:05"))),
			errorStyle.Render(r.Label))
		fmt.Fprintf(m.out, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", r.Error)))
	}
}
