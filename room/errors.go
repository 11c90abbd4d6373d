package room

import "errors"

// Common errors, reported back to the originating participant only.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotAMember          = errors.New("user is not a member of the room")
	ErrSpectatorCannotVote = errors.New("spectators cannot vote")
	ErrAlreadyRevealed     = errors.New("votes are already revealed")
	ErrEmptyReveal         = errors.New("no votes to reveal")

	// ErrRoomClosed is returned by Join when the session was torn down
	// between the registry lookup and the join. Callers retry via
	// GetOrCreate, the error never reaches a client.
	ErrRoomClosed = errors.New("room is closed")
)
