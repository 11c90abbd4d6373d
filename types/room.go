package types

import "time"

// Room is the wire-facing snapshot of one room as sent in the
// room-updated event. Users keep their join order (relevant for
// display only), votes are ordered by submission time.
type Room struct {
	Id         string    `json:"id"`
	Name       string    `json:"name"`
	Users      []User    `json:"users"`
	Votes      []Vote    `json:"votes"`
	IsRevealed bool      `json:"isRevealed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RoomRecord is the persisted lifecycle row of a room.
type RoomRecord struct {
	Id        string     `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`
}

// Round is one completed voting round, recorded when the votes are
// revealed.
type Round struct {
	Id         string    `json:"id" gorm:"primaryKey"`
	RoomId     string    `json:"roomId" gorm:"index"`
	Votes      VoteList  `json:"votes"`
	RevealedAt time.Time `json:"revealedAt"`
}
