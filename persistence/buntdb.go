package persistence

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/types"
	"github.com/tidwall/buntdb"
)

type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	db, err := setupBuntDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &BuntDBPersist{db}, nil
}

func setupBuntDB(cfg *config.Config) (*buntdb.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("roundsts", "round:*", buntdb.IndexJSON("revealedAt"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *BuntDBPersist) StoreRoom(record types.RoomRecord) error {
	u, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("room:"+record.Id, string(u), nil)
		return err
	})
}

func (p *BuntDBPersist) CloseRoom(roomId string, closedAt time.Time) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		u, err := tx.Get("room:" + roomId)
		if err != nil {
			return err
		}
		record := types.RoomRecord{}
		if err := json.Unmarshal([]byte(u), &record); err != nil {
			return err
		}
		record.ClosedAt = &closedAt
		ba, err := json.Marshal(record)
		if err != nil {
			return err
		}
		_, _, err = tx.Set("room:"+roomId, string(ba), nil)
		return err
	})
}

func (p *BuntDBPersist) GetRooms() ([]*types.RoomRecord, error) {
	records := make([]*types.RoomRecord, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, val string) bool {
			record := &types.RoomRecord{}
			if err := json.Unmarshal([]byte(val), record); err == nil {
				records = append(records, record)
			}
			return true
		})
	})
	return records, err
}

func (p *BuntDBPersist) StoreRound(round types.Round) error {
	u, err := json.Marshal(round)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("round:"+round.RoomId+":"+round.Id, string(u), nil)
		return err
	})
}

func (p *BuntDBPersist) GetRounds(roomId string, maxCount int) ([]*types.Round, error) {
	rounds := make([]*types.Round, 0)
	prefix := "round:" + roomId + ":"
	err := p.db.View(func(tx *buntdb.Tx) error {
		count := 0
		return tx.Descend("roundsts", func(key, val string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}
			round := &types.Round{}
			if err := json.Unmarshal([]byte(val), round); err == nil {
				rounds = append(rounds, round)
				count++
			}
			return maxCount <= 0 || count < maxCount
		})
	})
	return rounds, err
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
