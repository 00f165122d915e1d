package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Pairup/internal/core"
)

// Sink is where a Dispatcher writes. *Store implements it.
type Sink interface {
	RecordConnection(ctx context.Context, ev core.ConnectionEvent) error
	RecordVisit(ctx context.Context, ev core.VisitEvent) error
}

const writeTimeout = 5 * time.Second

type job struct {
	conn  *core.ConnectionEvent
	visit *core.VisitEvent
}

// Dispatcher is a core.Tracker that hands events to a fixed set of workers.
// When the buffer is full events are dropped, never blocking the caller.
type Dispatcher struct {
	sink Sink
	jobs chan job
	wg   conc.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, buffer, workers int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{sink: sink, jobs: make(chan job, buffer)}
	for range workers {
		d.wg.Go(d.run)
	}
	return d
}

func (d *Dispatcher) TrackConnection(ev core.ConnectionEvent) {
	d.enqueue(job{conn: &ev}, "connection")
}

func (d *Dispatcher) TrackVisit(ev core.VisitEvent) {
	d.enqueue(job{visit: &ev}, "visit")
}

func (d *Dispatcher) enqueue(j job, kind string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.jobs <- j:
	default:
		log.Warn().Str("module", "analytics").Str("kind", kind).Msg("buffer full, event dropped")
	}
}

func (d *Dispatcher) run() {
	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		var err error
		switch {
		case j.conn != nil:
			err = d.sink.RecordConnection(ctx, *j.conn)
		case j.visit != nil:
			err = d.sink.RecordVisit(ctx, *j.visit)
		}
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("module", "analytics").Msg("write failed")
		}
	}
}

// Close stops accepting events and waits for queued ones to be written.
// Events tracked after Close are discarded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

// Nop discards every event. Used when analytics are disabled.
type Nop struct{}

func (Nop) TrackConnection(core.ConnectionEvent) {}
func (Nop) TrackVisit(core.VisitEvent)           {}
