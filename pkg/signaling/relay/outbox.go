package relay

import (
	"context"
	"sync"
	"time"

	"securemeet/relaygate/pkg/signaling"
	"securemeet/relaygate/pkg/telemetry/metrics"
)

// Outbox is a connection's bounded FIFO of outbound messages. It implements
// signaling.Sink. A single writer drains it through Messages.
//
// When the queue is full a sender blocks for up to the configured timeout.
// If the queue is still full the outbox closes itself and the sender gets
// ErrBackpressure; the connection's writer then observes Done and tears the
// connection down.
type Outbox struct {
	ch      chan signaling.Message
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
	metrics *metrics.Collector
}

// NewOutbox creates an outbox holding up to size messages.
func NewOutbox(size int, timeout time.Duration, collector *metrics.Collector) *Outbox {
	return &Outbox{
		ch:      make(chan signaling.Message, size),
		done:    make(chan struct{}),
		timeout: timeout,
		metrics: collector,
	}
}

// Send queues msg.
func (o *Outbox) Send(ctx context.Context, msg signaling.Message) error {
	select {
	case <-o.done:
		return signaling.ErrConnectionClosed
	default:
	}

	select {
	case o.ch <- msg:
		return nil
	default:
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case o.ch <- msg:
		return nil
	case <-o.done:
		return signaling.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		o.metrics.RecordOutboxTimeout()
		o.Close()
		return signaling.ErrBackpressure
	}
}

// Close stops the outbox. It is safe to call more than once. The message
// channel is never closed; readers select on Done.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// Messages returns the queue for the connection writer.
func (o *Outbox) Messages() <-chan signaling.Message {
	return o.ch
}

// Done is closed when the outbox is closed.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Len returns the number of queued messages.
func (o *Outbox) Len() int {
	return len(o.ch)
}
