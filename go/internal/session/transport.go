package session

// Transport delivers encoded messages to the connections of a room.
// Implementations must not block the caller on a slow connection.
type Transport interface {
	Broadcast(roomID string, msg []byte)
	Send(roomID, playerID string, msg []byte)
	// Drop closes every connection the player holds in the room.
	Drop(roomID, playerID string)
}
