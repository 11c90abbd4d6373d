package persistence

import (
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/types"
)

// Persister stores room lifecycle records and completed rounds. All
// in-memory room state lives in the sessions, the persister is purely
// write-behind: a nil Persister is valid and disables persistence.
type Persister interface {
	StoreRoom(types.RoomRecord) error
	CloseRoom(roomId string, closedAt time.Time) error
	GetRooms() ([]*types.RoomRecord, error)
	StoreRound(types.Round) error
	GetRounds(roomId string, maxCount int) ([]*types.Round, error)
	Close() error
}

// NewPersister selects the backend via the configured type: "sqlite"
// and "postgres" share the gorm implementation, "buntdb" is the
// file-backed key-value alternative. An empty type returns a nil
// persister.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "sqlite", "postgres":
		return NewGormPersister(cfg)
	case "buntdb":
		return NewBuntPersister(cfg)
	case "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown persistence type: %s", cfg.PersistenceConfig.Type)
}
