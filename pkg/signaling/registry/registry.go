// Package registry tracks live signaling connections.
//
// The registry is the single owner of connection state. Other components
// refer to connections by id and read them through Lookup, which returns a
// copy, so a disconnect can never leave a dangling shared reference.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"securemeet/relaygate/pkg/signaling"
)

// Connection is a snapshot of one live connection.
type Connection struct {
	// ID is the server-assigned connection id.
	ID string

	// Email is the participant email supplied by the client on join.
	// It is not validated.
	Email string

	// RoomID is the room the connection currently occupies, or "".
	RoomID string

	// Alive is false once the transport has failed and cleanup is pending.
	Alive bool

	// ConnectedAt is when the connection was registered.
	ConnectedAt time.Time

	// Sink delivers messages to the connection.
	Sink signaling.Sink
}

// Attributes is a partial update for SetAttributes. Nil fields are left unchanged.
type Attributes struct {
	RoomID *string
	Email  *string
}

// Registry maps connection ids to connection state.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	// newID is replaced in tests.
	newID func() string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		newID: uuid.NewString,
	}
}

// Register allocates a fresh id for a newly accepted connection.
func (r *Registry) Register(sink signaling.Sink) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for _, taken := r.conns[id]; taken; _, taken = r.conns[id] {
		id = r.newID()
	}

	r.conns[id] = &Connection{
		ID:          id,
		Alive:       true,
		ConnectedAt: time.Now(),
		Sink:        sink,
	}
	return id
}

// Lookup returns a copy of the connection with the given id.
func (r *Registry) Lookup(id string) (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s", signaling.ErrNotFound, id)
	}
	return *c, nil
}

// SetAttributes updates the room and/or email of a connection.
func (r *Registry) SetAttributes(id string, attrs Attributes) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("%w: %s", signaling.ErrNotFound, id)
	}
	if attrs.RoomID != nil {
		c.RoomID = *attrs.RoomID
	}
	if attrs.Email != nil {
		c.Email = *attrs.Email
	}
	return nil
}

// MarkDead flags a connection whose transport has failed. Lookup keeps
// returning it until Remove.
func (r *Registry) MarkDead(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[id]; ok {
		c.Alive = false
	}
}

// Remove deletes a connection. Later lookups return ErrNotFound.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return fmt.Errorf("%w: %s", signaling.ErrNotFound, id)
	}
	delete(r.conns, id)
	return nil
}

// Send delivers msg to the connection with the given id.
func (r *Registry) Send(ctx context.Context, id string, msg signaling.Message) error {
	c, err := r.Lookup(id)
	if err != nil {
		return err
	}
	if !c.Alive || c.Sink == nil {
		return fmt.Errorf("%w: %s", signaling.ErrConnectionClosed, id)
	}
	return c.Sink.Send(ctx, msg)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
