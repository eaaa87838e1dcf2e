package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

var ErrQueueFull = errors.New("metrics queue is full")

// Dispatcher fans each event out to every output. In async mode Report only
// enqueues and never blocks the caller; a full queue drops the event.
type Dispatcher struct {
	outputs []Output
	timeout time.Duration

	async    bool
	queue    chan Event
	wg       sync.WaitGroup
	closed   bool
	closedMu sync.RWMutex
}

type DispatcherConfig struct {
	Async      bool
	BufferSize int
	// Timeout bounds delivery of one event to all outputs.
	Timeout time.Duration
}

func NewDispatcher(outputs []Output, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	d := &Dispatcher{outputs: outputs, timeout: cfg.Timeout, async: cfg.Async}
	if cfg.Async {
		if cfg.BufferSize <= 0 {
			cfg.BufferSize = 64
		}
		d.queue = make(chan Event, cfg.BufferSize)
		d.wg.Add(1)
		go d.loop()
	}
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for ev := range d.queue {
		if err := d.deliver(context.Background(), ev); err != nil {
			log.Warn("Metrics delivery failed", "step", ev.Step, "err", err)
		}
	}
}

// Report delivers ev, or enqueues it in async mode.
func (d *Dispatcher) Report(ctx context.Context, ev Event) error {
	if !d.async {
		return d.deliver(ctx, ev)
	}

	d.closedMu.RLock()
	defer d.closedMu.RUnlock()
	if d.closed {
		return ErrOutputClosed
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, out := range d.outputs {
		wg.Add(1)
		go func(o Output) {
			defer wg.Done()
			if err := o.Send(ctx, ev); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", o.Name(), err))
				mu.Unlock()
			}
		}(out)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close flushes queued events, then closes every output.
func (d *Dispatcher) Close() error {
	if d.async {
		d.closedMu.Lock()
		if !d.closed {
			d.closed = true
			close(d.queue)
		}
		d.closedMu.Unlock()
		d.wg.Wait()
	}

	var errs []error
	for _, o := range d.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}
