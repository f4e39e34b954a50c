// Package rooms implements room membership for the signaling server.
//
// A room is created by its first join and deleted when its last member
// leaves. It never holds more than MaxMembers connections:
//
//	Empty -> OneMember -> TwoMembers -> OneMember -> Empty
//
// The check for capacity and the insertion happen under the room's lock, so
// two simultaneous joiners can never both be told they are the second member.
// Notifications to the other member are sent after the lock is released.
package rooms
