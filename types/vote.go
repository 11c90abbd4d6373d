package types

import "time"

// Vote is one member's estimate for the current round. The value is an
// opaque token chosen by the client ("5", "13", "coffee", ...).
type Vote struct {
	UserId    string    `json:"userId"`
	Value     string    `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Masked returns a copy of the vote with the value withheld. Used for
// everything that leaves the room while the votes are not revealed.
func (v Vote) Masked() Vote {
	v.Value = ""
	return v
}
