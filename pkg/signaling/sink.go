package signaling

import "context"

// Sink is the outbound side of a connection. Messages sent to one Sink are
// delivered in send order.
type Sink interface {
	// Send queues msg for delivery. It returns ErrConnectionClosed once the
	// sink is closed and ErrBackpressure if the queue stays full too long.
	Send(ctx context.Context, msg Message) error

	// Close stops delivery. Queued messages may be discarded.
	Close()
}
