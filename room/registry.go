package room

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jonboulle/clockwork"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
	"github.com/tcriess/lightspeed-poker/types"
)

const closedRoomCacheSize = 128

// Registry maps room ids to live sessions and is the single source of
// truth for which rooms exist. Its own mutex only guards the id to
// session mapping, each session serializes its internal state
// independently.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// final snapshots of recently torn down rooms
	closed *lru.Cache

	cfg       *config.Config
	persister persistence.Persister
	clock     clockwork.Clock
}

func NewRegistry(cfg *config.Config, persister persistence.Persister, clock clockwork.Clock) *Registry {
	closed, _ := lru.New(closedRoomCacheSize)
	return &Registry{
		sessions:  make(map[string]*Session),
		closed:    closed,
		cfg:       cfg,
		persister: persister,
		clock:     clock,
	}
}

// GetOrCreate returns the session for the room id, creating an empty
// one if none exists. Concurrent first joins to the same id get the
// same session.
func (r *Registry) GetOrCreate(roomId string) *Session {
	r.mu.RLock()
	if s, ok := r.sessions[roomId]; ok {
		r.mu.RUnlock()
		return s
	}
	r.mu.RUnlock()
	r.mu.Lock()
	if s, ok := r.sessions[roomId]; ok {
		r.mu.Unlock()
		return s
	}
	s := newSession(roomId, r, r.persister, r.clock, r.cfg.HistoryConfig.HistorySize, r.cfg.AllowEmptyReveal)
	r.sessions[roomId] = s
	r.mu.Unlock()
	globals.AppLogger.Info("room created", "room", roomId)
	if r.persister != nil {
		if err := r.persister.StoreRoom(types.RoomRecord{Id: roomId, Name: roomId, CreatedAt: s.createdAt}); err != nil {
			globals.AppLogger.Error("could not persist room", "room", roomId, "error", err)
		}
	}
	return s
}

// Get is the read-only lookup used to route leave/vote/reveal/reset,
// which must target an existing room.
func (r *Registry) Get(roomId string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[roomId]
	return s, ok
}

// Remove deletes the session entry. Removing an absent id is a no-op.
func (r *Registry) Remove(roomId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, roomId)
}

// Rooms returns a snapshot of every live room.
func (r *Registry) Rooms() []types.Room {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	rooms := make([]types.Room, 0, len(sessions))
	for _, s := range sessions {
		rooms = append(rooms, s.Snapshot())
	}
	return rooms
}

// LastSnapshot returns the final state of a recently closed room.
func (r *Registry) LastSnapshot(roomId string) (types.Room, bool) {
	if v, ok := r.closed.Get(roomId); ok {
		return v.(types.Room), true
	}
	return types.Room{}, false
}

// retire is called by a session when its last member left: the entry
// is dropped, the final snapshot cached and the closing persisted.
func (r *Registry) retire(roomId string, final types.Room) {
	r.Remove(roomId)
	r.closed.Add(roomId, final)
	globals.AppLogger.Info("room closed", "room", roomId)
	if r.persister != nil {
		if err := r.persister.CloseRoom(roomId, r.clock.Now()); err != nil {
			globals.AppLogger.Error("could not persist room closing", "room", roomId, "error", err)
		}
	}
}
