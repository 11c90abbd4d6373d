package types

import (
	"encoding/json"
	"time"
)

// Events sent from the client to the server.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSubmitVote  = "submit-vote"
	EventRevealVotes = "reveal-votes"
	EventResetVotes  = "reset-votes"
	EventTest        = "test-event"
)

// Events sent from the server to the client.
const (
	EventRoomUpdated   = "room-updated"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventVoteSubmitted = "vote-submitted"
	EventVotesRevealed = "votes-revealed"
	EventVotesReset    = "votes-reset"
	EventError         = "error"
	EventTestResponse  = "test-response"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewWebsocketMessage wraps a payload into the wire envelope. A nil
// payload is valid for the events that carry no data (votes-revealed,
// votes-reset).
func NewWebsocketMessage(event string, payload interface{}) ([]byte, error) {
	msg := WebsocketMessage{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return json.Marshal(msg)
}

// The different types of messages transferred from the client to here.

// JoinRoomMessage names the room to join. An empty user name gets a
// generated guest name assigned by the server.
type JoinRoomMessage struct {
	RoomId      string `json:"roomId" mapstructure:"roomId"`
	UserName    string `json:"userName" mapstructure:"userName"`
	IsSpectator bool   `json:"isSpectator" mapstructure:"isSpectator"`
}

// RoomRefMessage is the payload of leave-room, reveal-votes and
// reset-votes, which only target an existing room.
type RoomRefMessage struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
}

type SubmitVoteMessage struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
	Vote   string `json:"vote" mapstructure:"vote"`
}

// Outgoing payloads.

type UserLeftMessage struct {
	UserId string `json:"userId"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// TestResponseMessage answers the diagnostic test-event with a server
// timestamp and the original payload echoed back.
type TestResponseMessage struct {
	Message      string          `json:"message"`
	Timestamp    time.Time       `json:"timestamp"`
	OriginalData json.RawMessage `json:"originalData,omitempty"`
}
