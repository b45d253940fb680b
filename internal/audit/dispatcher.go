package audit

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatcher queue. With DropIfFull unset, Emit waits for
// queue space until ctx is done.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Stats counts what happened to emitted events.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	// SinkPanics counts events whose sink panicked. The event is lost and
	// delivery continues with the next one.
	SinkPanics uint64
}

// Dispatcher hands audit events to a sink on its own goroutine, so a slow
// sink never holds up login or registration.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event
	stop  chan struct{}
	idle  chan struct{}

	delivered  atomic.Uint64
	dropped    atomic.Uint64
	sinkPanics atomic.Uint64

	// inflight counts Emit calls between their closing check and their
	// return. The final drain waits for it to reach zero.
	inflight atomic.Int64
	closing  atomic.Bool
	stopOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing is
// disabled; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
		idle:  make(chan struct{}),
	}
	go d.loop()

	return d
}

func (d *Dispatcher) loop() {
	defer close(d.idle)

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
			continue
		default:
		}
		if d.inflight.Load() == 0 && len(d.queue) == 0 {
			return
		}
		runtime.Gosched()
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if recover() != nil {
			d.sinkPanics.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event. Every event is eventually counted as delivered, dropped
// or a sink panic; events emitted after Close count as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.inflight.Add(1)
	defer d.inflight.Add(-1)

	if d.closing.Load() {
		d.dropped.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Shutdown stops accepting events and waits until the queue has drained or
// ctx is done, whichever comes first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.stopOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
	})

	select {
	case <-d.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (d *Dispatcher) Close() {
	_ = d.Shutdown(context.Background())
}

// Dropped counts events lost to a full queue, an expired emit context or a
// dispatcher that was already shutting down.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Stats returns the delivery counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered:  d.delivered.Load(),
		Dropped:    d.dropped.Load(),
		SinkPanics: d.sinkPanics.Load(),
	}
}
