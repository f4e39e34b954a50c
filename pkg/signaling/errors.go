package signaling

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the signaling packages. Compare with errors.Is.
var (
	// ErrNotFound is returned for an unknown connection id.
	ErrNotFound = errors.New("connection not found")

	// ErrRoomFull is returned when a room already has two members.
	ErrRoomFull = errors.New("room is full")

	// ErrPeerUnreachable is returned to a sender whose relay target is not connected.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrBackpressure is returned when a connection's outbound queue stayed
	// full past the configured timeout.
	ErrBackpressure = errors.New("outbound queue full")

	// ErrConnectionClosed is returned when sending to a closed connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrBadRequest is returned for a frame that cannot be interpreted.
	ErrBadRequest = errors.New("bad request")

	// ErrUnknownEvent is returned for an unrecognized event type.
	ErrUnknownEvent = errors.New("unknown event")
)

// Wire error codes.
const (
	CodeRoomFull        = "room_full"
	CodePeerUnreachable = "peer_unreachable"
	CodeNotFound        = "not_found"
	CodeBadRequest      = "bad_request"
	CodeUnknownEvent    = "unknown_event"
	CodeInternal        = "internal"
)

// Error is a signaling failure reported back to the originating connection.
type Error struct {
	Code string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the wire code matching its sentinel.
func NewError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Code: CodeOf(err), Err: err}
}

// CodeOf returns the wire code for err.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, ErrPeerUnreachable):
		return CodePeerUnreachable
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, ErrUnknownEvent):
		return CodeUnknownEvent
	default:
		return CodeInternal
	}
}

// ErrorMessage builds the error event sent for err.
func ErrorMessage(err error) Message {
	se := NewError(err)
	return MustMessage(EventError, ErrorPayload{Code: se.Code, Message: se.Err.Error()})
}
