// Package tasks runs deferred work after a request has been answered.
//
// Tasks are named and carry string parameters. The Dispatcher delivers each
// task at least once to the handler registered for its name, retrying failed
// runs with a linear backoff up to a bounded number of attempts.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Task names.
const (
	SendConfirmationEmail = "send_confirmation_email"
	SetSpeaker            = "set_speaker"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no room.
	ErrQueueFull = errors.New("tasks: queue is full")

	// ErrUnknownTask is returned for a task name without a handler.
	ErrUnknownTask = errors.New("tasks: unknown task")

	// ErrStopped is returned by Enqueue once the dispatcher shut down.
	ErrStopped = errors.New("tasks: dispatcher stopped")
)

// Queue accepts tasks for later execution.
type Queue interface {
	Enqueue(ctx context.Context, name string, params map[string]string) error
}

// Handler executes one task. A returned error schedules a retry.
type Handler func(ctx context.Context, params map[string]string) error

type Task struct {
	ID     string
	Name   string
	Params map[string]string
}

type Config struct {
	Workers     int
	Buffer      int
	MaxAttempts int
	Backoff     time.Duration
}

func (c *Config) validate() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Buffer < 1 {
		c.Buffer = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
}

// Dispatcher is an in-process Queue backed by a bounded channel and a fixed
// pool of workers.
type Dispatcher struct {
	cfg Config
	log zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	queue    chan Task
	closed   bool

	// stopping is closed when Run begins to drain.
	stopping chan struct{}
}

func NewDispatcher(cfg Config, log zerolog.Logger) *Dispatcher {
	cfg.validate()
	return &Dispatcher{
		cfg:      cfg,
		log:      log.With().Str("component", "tasks").Logger(),
		handlers: make(map[string]Handler),
		queue:    make(chan Task, cfg.Buffer),
		stopping: make(chan struct{}),
	}
}

// Handle registers h for name, replacing any previous handler.
func (d *Dispatcher) Handle(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

func (d *Dispatcher) handler(name string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[name]
	return h, ok
}

// Enqueue never blocks: a full buffer fails with ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, params map[string]string) error {
	if _, ok := d.handler(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}
	t := Task{ID: uuid.NewString(), Name: name, Params: copied}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrStopped
	}
	select {
	case d.queue <- t:
		d.log.Debug().Str("task_id", t.ID).Str("task", name).Msg("Task enqueued")
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled. Tasks already
// queued are drained before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range d.queue {
				d.process(t)
			}
		}()
	}

	<-ctx.Done()
	d.mu.Lock()
	d.closed = true
	close(d.stopping)
	close(d.queue)
	d.mu.Unlock()

	wg.Wait()
	d.log.Info().Msg("Task dispatcher stopped")
	return nil
}

func (d *Dispatcher) process(t Task) {
	log := d.log.With().Str("task_id", t.ID).Str("task", t.Name).Logger()
	ctx := log.WithContext(context.Background())

	h, ok := d.handler(t.Name)
	if !ok {
		log.Error().Msg("No handler for task")
		return
	}

	for attempt := 1; ; attempt++ {
		err := h(ctx, t.Params)
		if err == nil {
			log.Debug().Int("attempt", attempt).Msg("Task done")
			return
		}
		if attempt >= d.cfg.MaxAttempts {
			log.Err(err).Int("attempt", attempt).Msg("Task failed, giving up")
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("Task failed, retrying")
		d.backoff(attempt)
	}
}

// backoff waits before the next attempt. Once the dispatcher is draining the
// remaining attempts run without delay.
func (d *Dispatcher) backoff(attempt int) {
	timer := time.NewTimer(d.cfg.Backoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-d.stopping:
	}
}
