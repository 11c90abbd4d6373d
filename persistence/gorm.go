package persistence

import (
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db.Migrator().AutoMigrate(&types.RoomRecord{}, &types.Round{})
	return db, nil
}

func (p *GormPersist) StoreRoom(record types.RoomRecord) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
}

func (p *GormPersist) CloseRoom(roomId string, closedAt time.Time) error {
	return p.db.Model(&types.RoomRecord{Id: roomId}).Update("closed_at", closedAt).Error
}

func (p *GormPersist) GetRooms() ([]*types.RoomRecord, error) {
	records := make([]*types.RoomRecord, 0)
	err := p.db.Find(&records).Error
	return records, err
}

func (p *GormPersist) StoreRound(round types.Round) error {
	return p.db.Create(&round).Error
}

func (p *GormPersist) GetRounds(roomId string, maxCount int) ([]*types.Round, error) {
	rounds := make([]*types.Round, 0)
	tx := p.db.Where("room_id = ?", roomId).Order("revealed_at DESC")
	if maxCount > 0 {
		tx = tx.Limit(maxCount)
	}
	err := tx.Find(&rounds).Error
	if err != nil {
		return nil, err
	}
	return rounds, nil
}

func (p *GormPersist) Close() error {
	return nil
}
