// Package relay routes inbound signaling messages.
//
// Room events go to the room manager. Call setup, renegotiation, chat and
// file events are forwarded verbatim to the connection named in "to", tagged
// with the sender's id in "from". Delivery is fire-and-forget against the
// current connection set: an absent target is reported to the sender and the
// message is dropped.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"securemeet/relaygate/pkg/signaling"
	"securemeet/relaygate/pkg/signaling/registry"
	"securemeet/relaygate/pkg/signaling/rooms"
	"securemeet/relaygate/pkg/telemetry/metrics"
)

// Relay dispatches messages from connections.
type Relay struct {
	reg     *registry.Registry
	rooms   *rooms.Manager
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a relay. collector may be nil.
func New(reg *registry.Registry, manager *rooms.Manager, collector *metrics.Collector) *Relay {
	return &Relay{
		reg:     reg,
		rooms:   manager,
		metrics: collector,
		logger:  slog.Default().With("component", "signaling.relay"),
	}
}

// Handle processes one message received from connection from. A returned
// error is meant for the sender; connection state is left consistent.
func (r *Relay) Handle(ctx context.Context, from string, msg signaling.Message) error {
	switch msg.Type {
	case signaling.EventJoinRoom:
		return r.join(ctx, from, msg)

	case signaling.EventLeaveRoom:
		return r.rooms.Leave(ctx, from)

	case "":
		return fmt.Errorf("%w: missing type", signaling.ErrBadRequest)

	default:
		return r.Forward(ctx, from, msg)
	}
}

func (r *Relay) join(ctx context.Context, from string, msg signaling.Message) error {
	var req signaling.JoinRequest
	if err := msg.Decode(&req); err != nil {
		return err
	}

	res, err := r.rooms.Join(ctx, from, req.Room, req.Email)
	if err != nil {
		return err
	}

	return r.reg.Send(ctx, from, signaling.MustMessage(signaling.EventRoomJoined, signaling.RoomJoined{
		Email:  req.Email,
		Room:   res.RoomID,
		ID:     from,
		PeerID: res.PeerID,
	}))
}

// Forward delivers a peer-to-peer event to msg.To. The payload is passed
// through untouched.
func (r *Relay) Forward(ctx context.Context, from string, msg signaling.Message) error {
	outType, ok := signaling.RelayedAs(msg.Type)
	if !ok {
		r.metrics.RecordRelay("unknown", "rejected")
		return fmt.Errorf("%w: %q", signaling.ErrUnknownEvent, msg.Type)
	}
	if msg.To == "" {
		r.metrics.RecordRelay(string(msg.Type), "rejected")
		return fmt.Errorf("%w: %s requires \"to\"", signaling.ErrBadRequest, msg.Type)
	}

	out := signaling.Message{Type: outType, From: from, Data: msg.Data}
	err := r.reg.Send(ctx, msg.To, out)
	switch {
	case err == nil:
		r.metrics.RecordRelay(string(msg.Type), "delivered")
		return nil

	case errors.Is(err, signaling.ErrNotFound), errors.Is(err, signaling.ErrConnectionClosed):
		r.metrics.RecordRelay(string(msg.Type), "unreachable")
		return fmt.Errorf("%w: %s", signaling.ErrPeerUnreachable, msg.To)

	case errors.Is(err, signaling.ErrBackpressure):
		r.metrics.RecordRelay(string(msg.Type), "backpressure")
		r.logger.Warn("relay target too slow, disconnecting",
			"from", from,
			"to", msg.To,
			"event", msg.Type,
		)
		return fmt.Errorf("%w: %s", signaling.ErrPeerUnreachable, msg.To)

	default:
		r.metrics.RecordRelay(string(msg.Type), "error")
		return err
	}
}

// Disconnect tears down a connection: it is marked dead so nothing more is
// delivered, removed from its room (notifying the peer), then removed from
// the registry.
func (r *Relay) Disconnect(ctx context.Context, id string) {
	r.reg.MarkDead(id)
	if err := r.rooms.Leave(ctx, id); err != nil {
		r.logger.Warn("failed to leave room on disconnect", "conn_id", id, "error", err)
	}
	if err := r.reg.Remove(id); err != nil && !errors.Is(err, signaling.ErrNotFound) {
		r.logger.Warn("failed to remove connection", "conn_id", id, "error", err)
	}
}
