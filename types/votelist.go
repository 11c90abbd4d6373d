package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// VoteList is a JSON column type for persisted rounds, needs to implement the
// driver.Valuer and sql.Scanner interfaces
type VoteList []Vote

// Value return json value, implement driver.Valuer interface
func (l VoteList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	ba, err := json.Marshal([]Vote(l))
	return string(ba), err
}

// Scan scan value into the list, implements sql.Scanner interface
func (l *VoteList) Scan(val interface{}) error {
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", val))
	}
	t := make([]Vote, 0)
	err := json.Unmarshal(ba, &t)
	*l = VoteList(t)
	return err
}

// GormDataType gorm common data type
func (l VoteList) GormDataType() string {
	return "votelist"
}

// GormDBDataType gorm db data type
func (VoteList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite":
		return "JSON"
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
