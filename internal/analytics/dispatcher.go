package analytics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/veranemoloko/tgdl-core/internal/metrics"
)

// Sink receives dispatched events one at a time.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Dispatcher fans events out to a sink from a single background goroutine.
// Emit never blocks: when the buffer is full the event is dropped.
type Dispatcher struct {
	sink         Sink
	events       chan Event
	logger       *slog.Logger
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownChan chan struct{}
}

func NewDispatcher(sink Sink, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 100
	}
	d := &Dispatcher{
		sink:         sink,
		events:       make(chan Event, buffer),
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Emit queues e for delivery.
func (d *Dispatcher) Emit(e Event) {
	select {
	case <-d.shutdownChan:
		metrics.EventsDropped.Inc()
		return
	default:
	}

	select {
	case d.events <- e:
	default:
		metrics.EventsDropped.Inc()
		d.logger.Warn("analytics buffer full, event dropped", "type", e.Type)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case e := <-d.events:
			d.send(e)
		case <-d.shutdownChan:
			for {
				select {
				case e := <-d.events:
					d.send(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) send(e Event) {
	if err := d.sink.Send(context.Background(), e); err != nil {
		d.logger.Error("failed to send analytics event",
			"type", e.Type,
			"error", err,
		)
	}
}

// Shutdown stops accepting events and drains what is already queued.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdownOnce.Do(func() { close(d.shutdownChan) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("analytics dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("analytics dispatcher shutdown timed out")
		return ctx.Err()
	}
}
