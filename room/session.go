package room

import (
	"container/ring"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
	"github.com/tcriess/lightspeed-poker/types"
)

// Receiver delivers a marshalled wire message to one member's
// connection. Deliver must not block; it reports whether the message
// was accepted so a dead member can be logged.
type Receiver interface {
	Deliver(message []byte) bool
}

// Session is the state machine of one room. Every mutation
// (join/leave/vote/reveal/reset) takes the session mutex for the whole
// mutate-then-enqueue sequence, so broadcasts leave the session in the
// order the actions were applied. Different rooms are independent.
type Session struct {
	id        string
	name      string
	createdAt time.Time

	mu         sync.Mutex
	users      []*types.User // join order
	userById   map[string]*types.User
	votes      map[string]types.Vote
	isRevealed bool
	members    map[string]Receiver
	closed     bool

	// completed rounds in a ring buffer
	roundsStart, roundsEnd *ring.Ring

	registry         *Registry
	persister        persistence.Persister
	clock            clockwork.Clock
	allowEmptyReveal bool
}

func newSession(id string, registry *Registry, persister persistence.Persister, clock clockwork.Clock, historySize int, allowEmptyReveal bool) *Session {
	rounds := ring.New(historySize)
	return &Session{
		id:               id,
		name:             id,
		createdAt:        clock.Now(),
		userById:         make(map[string]*types.User),
		votes:            make(map[string]types.Vote),
		members:          make(map[string]Receiver),
		roundsStart:      rounds,
		roundsEnd:        rounds,
		registry:         registry,
		persister:        persister,
		clock:            clock,
		allowEmptyReveal: allowEmptyReveal,
	}
}

func (s *Session) Id() string {
	return s.id
}

// Join adds a user to the room and registers its receiver. A second
// join of the same user id is treated as a re-join which only updates
// name and spectator flag. The joining participant receives a full
// room-updated snapshot, the existing members a user-joined event.
func (s *Session) Join(userId, name string, isSpectator bool, rcv Receiver) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrRoomClosed
	}
	if user, ok := s.userById[userId]; ok {
		// re-join: update the user in place, a voter turning spectator
		// loses its vote as spectators are excluded from the tally
		user.Name = name
		if isSpectator && !user.IsSpectator {
			delete(s.votes, userId)
		}
		user.IsSpectator = isSpectator
		s.members[userId] = rcv
		s.broadcastLocked("", types.EventRoomUpdated, s.snapshotLocked())
		return user, nil
	}
	user := &types.User{Id: userId, Name: name, IsSpectator: isSpectator}
	s.users = append(s.users, user)
	s.userById[userId] = user
	s.members[userId] = rcv
	s.broadcastLocked(userId, types.EventUserJoined, user)
	s.deliverLocked(userId, types.EventRoomUpdated, s.snapshotLocked())
	return user, nil
}

// Leave removes a user and its vote from the room. When the last
// member leaves, the session is torn down and removed from the
// registry.
func (s *Session) Leave(userId string) error {
	s.mu.Lock()
	if _, ok := s.userById[userId]; !ok {
		s.mu.Unlock()
		return ErrNotAMember
	}
	var final types.Room
	lastMember := len(s.users) == 1
	if lastMember {
		// keep the final pre-leave state for post-mortem inspection
		final = s.snapshotLocked()
		s.closed = true
	}
	delete(s.userById, userId)
	delete(s.votes, userId)
	delete(s.members, userId)
	for i, user := range s.users {
		if user.Id == userId {
			s.users = append(s.users[:i], s.users[i+1:]...)
			break
		}
	}
	s.broadcastLocked("", types.EventUserLeft, types.UserLeftMessage{UserId: userId})
	s.mu.Unlock()
	if lastMember {
		s.registry.retire(s.id, final)
	}
	return nil
}

// SubmitVote upserts the member's vote for the current round. The
// broadcast carries only who voted and when, never the value, as the
// votes stay hidden until revealed.
func (s *Session) SubmitVote(userId, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.userById[userId]
	if !ok {
		return ErrNotAMember
	}
	if user.IsSpectator {
		return ErrSpectatorCannotVote
	}
	if s.isRevealed {
		return ErrAlreadyRevealed
	}
	vote := types.Vote{UserId: userId, Value: value, Timestamp: s.clock.Now()}
	s.votes[userId] = vote
	s.broadcastLocked("", types.EventVoteSubmitted, vote.Masked())
	return nil
}

// Reveal makes all vote values visible to all members and records the
// completed round. Revealing an empty round is rejected unless
// explicitly allowed by configuration.
func (s *Session) Reveal() error {
	s.mu.Lock()
	if s.isRevealed {
		s.mu.Unlock()
		return ErrAlreadyRevealed
	}
	if len(s.votes) == 0 && !s.allowEmptyReveal {
		s.mu.Unlock()
		return ErrEmptyReveal
	}
	s.isRevealed = true
	round := types.Round{
		Id:         uuid.NewString(),
		RoomId:     s.id,
		Votes:      types.VoteList(s.sortedVotesLocked()),
		RevealedAt: s.clock.Now(),
	}
	s.roundsEnd.Value = round
	s.roundsEnd = s.roundsEnd.Next()
	if s.roundsEnd == s.roundsStart {
		s.roundsStart = s.roundsStart.Next()
	}
	s.broadcastLocked("", types.EventVotesRevealed, nil)
	s.broadcastLocked("", types.EventRoomUpdated, s.snapshotLocked())
	s.mu.Unlock()
	if s.persister != nil {
		if err := s.persister.StoreRound(round); err != nil {
			globals.AppLogger.Error("could not persist round", "room", s.id, "error", err)
		}
	}
	return nil
}

// Reset clears all votes and returns the room to the collecting state.
// Valid in any sub-state.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = make(map[string]types.Vote)
	s.isRevealed = false
	s.broadcastLocked("", types.EventVotesReset, nil)
	return nil
}

// Snapshot returns the current room state, with vote values masked
// while the room is collecting.
func (s *Session) Snapshot() types.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Rounds returns the completed rounds still held in the in-memory ring
// buffer, oldest first.
func (s *Session) Rounds() []types.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds := make([]types.Round, 0)
	for current := s.roundsStart; current != s.roundsEnd; current = current.Next() {
		rounds = append(rounds, current.Value.(types.Round))
	}
	return rounds
}

func (s *Session) snapshotLocked() types.Room {
	users := make([]types.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	votes := s.sortedVotesLocked()
	if !s.isRevealed {
		for i := range votes {
			votes[i] = votes[i].Masked()
		}
	}
	return types.Room{
		Id:         s.id,
		Name:       s.name,
		Users:      users,
		Votes:      votes,
		IsRevealed: s.isRevealed,
		CreatedAt:  s.createdAt,
	}
}

func (s *Session) sortedVotesLocked() []types.Vote {
	votes := make([]types.Vote, 0, len(s.votes))
	for _, vote := range s.votes {
		votes = append(votes, vote)
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].Timestamp.Equal(votes[j].Timestamp) {
			return votes[i].UserId < votes[j].UserId
		}
		return votes[i].Timestamp.Before(votes[j].Timestamp)
	})
	return votes
}

// broadcastLocked enqueues the event to every member except the one
// named in exclude, in join order. Delivery is fire-and-forget: a
// member that cannot accept the message is logged, the state change is
// never rolled back.
func (s *Session) broadcastLocked(exclude string, event string, payload interface{}) {
	message, err := types.NewWebsocketMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal event", "event", event, "error", err)
		return
	}
	for _, user := range s.users {
		if user.Id == exclude {
			continue
		}
		if rcv, ok := s.members[user.Id]; ok {
			if !rcv.Deliver(message) {
				globals.AppLogger.Warn("could not deliver event", "event", event, "room", s.id, "user", user.Id)
			}
		}
	}
}

// deliverLocked sends the event to a single member.
func (s *Session) deliverLocked(userId string, event string, payload interface{}) {
	message, err := types.NewWebsocketMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal event", "event", event, "error", err)
		return
	}
	if rcv, ok := s.members[userId]; ok {
		if !rcv.Deliver(message) {
			globals.AppLogger.Warn("could not deliver event", "event", event, "room", s.id, "user", userId)
		}
	}
}
