package notify

import (
	"context"
	"sync/atomic"
	"time"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/log"
)

// Dispatcher queues inspections and fans them out to sinks on a background
// goroutine. Notify drops the inspection when the queue is full.
type Dispatcher struct {
	sinks   []port.InspectionSink
	queue   chan entity.Inspection
	timeout time.Duration

	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher with a queue of size entries. Each sink
// call is bounded by timeout.
func NewDispatcher(size int, timeout time.Duration, sinks ...port.InspectionSink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan entity.Inspection, size),
		timeout: timeout,
	}
}

// Add registers more sinks. It must be called before Run.
func (d *Dispatcher) Add(sinks ...port.InspectionSink) {
	d.sinks = append(d.sinks, sinks...)
}

// Notify implements port.Notifier. It never blocks.
func (d *Dispatcher) Notify(inspection entity.Inspection) {
	select {
	case d.queue <- inspection:
	default:
		n := d.dropped.Add(1)
		log.Warn("notification queue full, inspection not published", "id", inspection.ID, "dropped", n)
	}
}

// Run delivers queued inspections until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case i := <-d.queue:
					d.publish(context.Background(), i)
				default:
					return
				}
			}
		case i := <-d.queue:
			d.publish(ctx, i)
		}
	}
}

// Dropped returns how many inspections did not fit in the queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) publish(ctx context.Context, i entity.Inspection) {
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sink.Publish(sctx, i)
		cancel()
		if err != nil {
			log.Warn("inspection sink failed", "sink", sink.Name(), "id", i.ID, "error", err)
		}
	}
}

var _ port.Notifier = (*Dispatcher)(nil)
