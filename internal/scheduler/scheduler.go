// Package scheduler runs short background jobs (probes, preview frames,
// uploads) on a fixed pool of workers and reports their results on a channel.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultWorkers = 3
	DefaultQueue   = 32
)

var (
	ErrQueueFull = errors.New("task queue is full")
	ErrClosed    = errors.New("dispatcher is shut down")
)

type Kind string

const (
	KindDuration Kind = "duration"
	KindSize     Kind = "size"
	KindPreview  Kind = "preview"
	KindUpload   Kind = "upload"
	KindTitle    Kind = "title"
	KindPlaylist Kind = "playlist"
)

// Task is one unit of background work. Run must honor ctx.
type Task struct {
	ID   string
	Kind Kind
	Run  func(ctx context.Context) (any, error)
}

func NewTask(kind Kind, run func(ctx context.Context) (any, error)) Task {
	return Task{ID: uuid.New().String(), Kind: kind, Run: run}
}

type Result struct {
	TaskID  string
	Kind    Kind
	Value   any
	Err     error
	Elapsed time.Duration
}

// Dispatcher is a fixed worker pool. Submit never blocks and results are
// delivered on Results until Shutdown.
type Dispatcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   chan Task
	results chan Result

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(workers, queue int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(chan Task, queue),
		results: make(chan Result, queue),
	}
	for i := range workers {
		d.wg.Add(1)
		go d.work(i)
	}
	return d
}

// Submit queues t, assigning an ID when it has none.
func (d *Dispatcher) Submit(t Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.tasks <- t:
		log.Debug().Str("op", "scheduler/submit").Msgf("queued %s task %s", t.Kind, t.ID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Results is never closed; select on it alongside other session channels.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case t := <-d.tasks:
			if d.ctx.Err() != nil {
				return
			}
			start := time.Now()
			value, err := t.Run(d.ctx)
			res := Result{TaskID: t.ID, Kind: t.Kind, Value: value, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				log.Debug().Str("op", "scheduler/work").Err(err).Msgf("worker %d: %s task %s failed", id, t.Kind, t.ID)
			}
			select {
			case d.results <- res:
			case <-d.ctx.Done():
				return
			}
		}
	}
}

// Shutdown cancels in-flight tasks and drops queued ones. It does not wait
// for workers to return.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	dropped := 0
	for {
		select {
		case <-d.tasks:
			dropped++
		default:
			if dropped > 0 {
				log.Debug().Str("op", "scheduler/shutdown").Msgf("dropped %d queued tasks", dropped)
			}
			return
		}
	}
}

// Wait blocks until every worker has returned. Only meaningful after
// Shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
