package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"securemeet/relaygate/pkg/signaling"
	"securemeet/relaygate/pkg/signaling/registry"
	"securemeet/relaygate/pkg/telemetry/metrics"
)

// MaxMembers is the room capacity. A call has exactly two parties.
const MaxMembers = 2

// JoinResult describes an accepted join.
type JoinResult struct {
	// RoomID is the joined room.
	RoomID string

	// PeerID is the member that was already present, or "".
	PeerID string

	// PeerEmail is the email of PeerID.
	PeerEmail string

	// Rejoined is true when the connection was already in the room.
	Rejoined bool
}

type member struct {
	id    string
	email string
}

// room is guarded by its own mutex. A closed room has been removed from the
// manager and must not gain members; joiners retry with a fresh room.
type room struct {
	mu      sync.Mutex
	id      string
	members []member
	closed  bool
}

func (r *room) peerOf(connID string) (member, bool) {
	for _, m := range r.members {
		if m.id != connID {
			return m, true
		}
	}
	return member{}, false
}

// Manager groups registry connections into rooms.
//
// Lock order is room.mu before Manager.mu. Join and Leave for the same
// connection must not run concurrently; the transport serializes them on the
// connection's read loop.
type Manager struct {
	reg     *registry.Registry
	metrics *metrics.Collector
	logger  *slog.Logger

	mu       sync.Mutex
	rooms    map[string]*room
	memberOf map[string]string
}

// NewManager creates a room manager over reg. collector may be nil.
func NewManager(reg *registry.Registry, collector *metrics.Collector) *Manager {
	return &Manager{
		reg:      reg,
		metrics:  collector,
		logger:   slog.Default().With("component", "signaling.rooms"),
		rooms:    make(map[string]*room),
		memberOf: make(map[string]string),
	}
}

// Join adds connID to roomID. A connection in another room leaves it once
// its place in roomID is secured, so a rejected join keeps the old room.
// When a member is already present it is sent peer-joined with the joiner's
// email and id. A full room returns ErrRoomFull and membership is unchanged.
func (m *Manager) Join(ctx context.Context, connID, roomID, email string) (JoinResult, error) {
	if roomID == "" {
		return JoinResult{}, fmt.Errorf("%w: room is required", signaling.ErrBadRequest)
	}
	if _, err := m.reg.Lookup(connID); err != nil {
		m.metrics.RecordRoomJoin("error")
		return JoinResult{}, err
	}

	m.mu.Lock()
	current := m.memberOf[connID]
	m.mu.Unlock()

	if current == roomID {
		return m.rejoin(connID, roomID, email)
	}

	var peer member
	var hasPeer bool
	var target *room
	for {
		r := m.getOrCreate(roomID)

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}
		if len(r.members) >= MaxMembers {
			r.mu.Unlock()
			m.metrics.RecordRoomJoin("full")
			m.logger.Info("join rejected, room full", "room", roomID, "conn_id", connID)
			return JoinResult{}, fmt.Errorf("%w: %s", signaling.ErrRoomFull, roomID)
		}
		peer, hasPeer = r.peerOf(connID)
		r.members = append(r.members, member{id: connID, email: email})
		r.mu.Unlock()
		target = r
		break
	}

	// The seat in roomID is held, so leaving the old room cannot strand
	// the connection.
	if current != "" {
		if err := m.Leave(ctx, connID); err != nil {
			m.dropSeat(target, connID)
			return JoinResult{}, err
		}
	}
	m.mu.Lock()
	m.memberOf[connID] = roomID
	m.mu.Unlock()

	// The connection may have disconnected while we were joining.
	if err := m.reg.SetAttributes(connID, registry.Attributes{RoomID: &roomID, Email: &email}); err != nil {
		m.removeMember(connID)
		m.metrics.RecordRoomJoin("error")
		return JoinResult{}, err
	}

	result := JoinResult{RoomID: roomID}
	if hasPeer {
		result.PeerID = peer.id
		result.PeerEmail = peer.email
		m.notify(ctx, peer.id, signaling.MustMessage(signaling.EventPeerJoined, signaling.PeerJoined{Email: email, ID: connID}))
		m.metrics.RecordRoomJoin("second")
	} else {
		m.metrics.RecordRoomJoin("first")
	}
	m.metrics.SetRoomsActive(m.Len())

	m.logger.Debug("joined room", "room", roomID, "conn_id", connID, "peer_id", result.PeerID)
	return result, nil
}

// rejoin handles a join for the room the connection already occupies. No
// notifications are sent.
func (m *Manager) rejoin(connID, roomID, email string) (JoinResult, error) {
	m.mu.Lock()
	r := m.rooms[roomID]
	m.mu.Unlock()

	result := JoinResult{RoomID: roomID, Rejoined: true}
	if r != nil {
		r.mu.Lock()
		for i := range r.members {
			if r.members[i].id == connID {
				r.members[i].email = email
			}
		}
		if p, ok := r.peerOf(connID); ok {
			result.PeerID = p.id
			result.PeerEmail = p.email
		}
		r.mu.Unlock()
	}
	if err := m.reg.SetAttributes(connID, registry.Attributes{Email: &email}); err != nil {
		return JoinResult{}, err
	}
	m.metrics.RecordRoomJoin("rejoin")
	return result, nil
}

// Leave removes connID from its room and sends peer-left to the remaining
// member. A room left empty is deleted. Leaving when not in a room is a no-op.
func (m *Manager) Leave(ctx context.Context, connID string) error {
	roomID, remaining, ok := m.removeMember(connID)
	if !ok {
		return nil
	}

	empty := ""
	// A removed connection has nothing left to update.
	_ = m.reg.SetAttributes(connID, registry.Attributes{RoomID: &empty})

	if remaining != "" {
		m.notify(ctx, remaining, signaling.MustMessage(signaling.EventPeerLeft, signaling.PeerLeft{ID: connID}))
	}
	m.metrics.SetRoomsActive(m.Len())

	m.logger.Debug("left room", "room", roomID, "conn_id", connID, "remaining", remaining)
	return nil
}

// removeMember takes connID out of its room. It returns the room, the id of
// the member still present (if any), and whether connID was in a room.
func (m *Manager) removeMember(connID string) (string, string, bool) {
	m.mu.Lock()
	roomID, ok := m.memberOf[connID]
	r := m.rooms[roomID]
	m.mu.Unlock()
	if !ok || r == nil {
		return "", "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.members[:0]
	for _, mem := range r.members {
		if mem.id != connID {
			kept = append(kept, mem)
		}
	}
	r.members = kept

	m.mu.Lock()
	delete(m.memberOf, connID)
	if len(r.members) == 0 {
		r.closed = true
		if m.rooms[roomID] == r {
			delete(m.rooms, roomID)
		}
	}
	m.mu.Unlock()

	var remaining string
	if len(r.members) > 0 {
		remaining = r.members[0].id
	}
	return roomID, remaining, true
}

// dropSeat undoes a member append that was never recorded in memberOf.
func (m *Manager) dropSeat(r *room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.members[:0]
	for _, mem := range r.members {
		if mem.id != connID {
			kept = append(kept, mem)
		}
	}
	r.members = kept

	if len(r.members) == 0 {
		m.mu.Lock()
		r.closed = true
		if m.rooms[r.id] == r {
			delete(m.rooms, r.id)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) getOrCreate(roomID string) *room {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		r = &room{id: roomID}
		m.rooms[roomID] = r
	}
	return r
}

// notify sends msg to a room member. Delivery failures are logged; the
// failing connection is cleaned up by its own transport.
func (m *Manager) notify(ctx context.Context, connID string, msg signaling.Message) {
	if err := m.reg.Send(ctx, connID, msg); err != nil {
		m.logger.Warn("failed to notify room member",
			"conn_id", connID,
			"event", msg.Type,
			"error", err,
		)
	}
}

// Members returns the ids in roomID, or nil if the room does not exist.
func (m *Manager) Members(roomID string) []string {
	m.mu.Lock()
	r := m.rooms[roomID]
	m.mu.Unlock()
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.members))
	for _, mem := range r.members {
		ids = append(ids, mem.id)
	}
	return ids
}

// RoomOf returns the room connID occupies, or "".
func (m *Manager) RoomOf(connID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberOf[connID]
}

// Len returns the number of rooms with at least one member.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}
