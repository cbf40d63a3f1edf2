// Package notify delivers committed ledger entries to out-of-band sinks.
//
// The Dispatcher is fire-and-forget: Notify never blocks the caller, events
// are dropped when the queue is full, and sink failures are logged and discarded.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet_ledger/internal/domain"

	"github.com/sirupsen/logrus"
)

// Event is one post-commit notification
type Event struct {
	Label       string             `json:"event"`       // Human label, e.g. "Agent Cash-out"
	Transaction domain.Transaction `json:"transaction"` // Committed entry
	QueuedAt    time.Time          `json:"queued_at"`   // When the engine handed it off
}

// Sink receives events from the dispatcher worker
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// DefaultDeliveryTimeout bounds a single sink delivery
const DefaultDeliveryTimeout = 5 * time.Second

// Dispatcher queues events and fans them out to sinks on a background goroutine
type Dispatcher struct {
	events  chan Event
	sinks   []Sink
	log     logrus.FieldLogger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher with a queue of buffer events
func NewDispatcher(buffer int, log logrus.FieldLogger, sinks ...Sink) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Dispatcher{
		events:  make(chan Event, buffer),
		sinks:   sinks,
		log:     log,
		timeout: DefaultDeliveryTimeout,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify queues tx for delivery without waiting
func (d *Dispatcher) Notify(tx domain.Transaction, label string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.WithField("reference", tx.Reference).Warn("Notification dropped: dispatcher closed")
		return
	}
	select {
	case d.events <- Event{Label: label, Transaction: tx, QueuedAt: time.Now()}:
	default:
		d.log.WithFields(logrus.Fields{
			"reference": tx.Reference,
			"event":     label,
		}).Warn("Notification dropped: queue full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered or for ctx to end
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		for _, s := range d.sinks {
			d.deliver(s, ev)
		}
	}
}

// deliver isolates the worker from sink errors and panics
func (d *Dispatcher) deliver(s Sink, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"sink":      s.Name(),
				"reference": ev.Transaction.Reference,
				"panic":     fmt.Sprint(r),
			}).Error("Notification sink panicked")
		}
	}()

	if err := s.Deliver(ctx, ev); err != nil {
		d.log.WithFields(logrus.Fields{
			"sink":      s.Name(),
			"reference": ev.Transaction.Reference,
			"error":     err.Error(),
		}).Warn("Notification delivery failed")
	}
}
