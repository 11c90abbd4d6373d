package types

// User is one participant of a room. The id is unique per connection,
// spectators are listed in the room but excluded from voting.
type User struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	IsSpectator bool   `json:"isSpectator"`
}
