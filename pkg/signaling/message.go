package signaling

import (
	"encoding/json"
	"fmt"
)

// EventType names a message on the signaling wire.
type EventType string

// Events sent by clients.
const (
	EventJoinRoom          EventType = "join-room"
	EventLeaveRoom         EventType = "leave-room"
	EventCallOffer         EventType = "call-offer"
	EventCallAccepted      EventType = "call-accepted"
	EventNegotiationNeeded EventType = "negotiation-needed"
	EventNegotiationDone   EventType = "negotiation-done"
	EventChatMessageSend   EventType = "chat-message-send"
	EventFileSend          EventType = "file-send"
)

// Events produced by the server.
const (
	EventConnected          EventType = "connected"
	EventRoomJoined         EventType = "room-joined"
	EventPeerJoined         EventType = "peer-joined"
	EventPeerLeft           EventType = "peer-left"
	EventIncomingCall       EventType = "incoming-call"
	EventNegotiationFinal   EventType = "negotiation-final"
	EventChatMessageReceive EventType = "chat-message-receive"
	EventFileReceive        EventType = "file-receive"
	EventError              EventType = "error"
)

// relayPairs maps each peer-to-peer event a client sends to the event the
// target receives. call-accepted and negotiation-needed keep their names.
var relayPairs = map[EventType]EventType{
	EventCallOffer:         EventIncomingCall,
	EventCallAccepted:      EventCallAccepted,
	EventNegotiationNeeded: EventNegotiationNeeded,
	EventNegotiationDone:   EventNegotiationFinal,
	EventChatMessageSend:   EventChatMessageReceive,
	EventFileSend:          EventFileReceive,
}

// RelayedAs returns the event type delivered to the target for an inbound
// relay event, and false if t is not relayed peer to peer.
func RelayedAs(t EventType) (EventType, bool) {
	out, ok := relayPairs[t]
	return out, ok
}

// Message is the envelope for every frame on the signaling wire. Data is
// carried as raw JSON; the server only decodes it for join-room.
type Message struct {
	Type EventType       `json:"type"`
	To   string          `json:"to,omitempty"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds a message of type t with payload marshaled into Data.
func NewMessage(t EventType, payload any) (Message, error) {
	msg := Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	msg.Data = data
	return msg, nil
}

// MustMessage is NewMessage for payload types that always marshal.
func MustMessage(t EventType, payload any) Message {
	msg, err := NewMessage(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Decode unmarshals Data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrBadRequest, m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrBadRequest, m.Type, err)
	}
	return nil
}

// JoinRequest is the data of a join-room event.
type JoinRequest struct {
	Email string `json:"email"`
	Room  string `json:"room"`
}

// Connected is the data of the greeting sent when a connection is accepted.
type Connected struct {
	ID string `json:"id"`
}

// RoomJoined is echoed to a connection after it joins a room. PeerID is set
// when another member was already present.
type RoomJoined struct {
	Email  string `json:"email"`
	Room   string `json:"room"`
	ID     string `json:"id"`
	PeerID string `json:"peerId,omitempty"`
}

// PeerJoined tells an existing member who joined its room.
type PeerJoined struct {
	Email string `json:"email"`
	ID    string `json:"id"`
}

// PeerLeft tells the remaining member that its peer is gone.
type PeerLeft struct {
	ID string `json:"id"`
}

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FileBlob describes the data clients put in file-send. The server never
// decodes it; the type documents the shape peers agree on.
type FileBlob struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
	Data     string `json:"data"`
}

// ChatText describes the data clients put in chat-message-send.
type ChatText struct {
	Text string `json:"text"`
}
