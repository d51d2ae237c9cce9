package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Int64List is a JSON-encoded list of user ids, need to implement the
// driver.Valuer, sql.Scanner interfaces
type Int64List []int64

// Value return json value, implement driver.Valuer interface
func (l Int64List) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	ba, err := json.Marshal([]int64(l))
	return string(ba), err
}

// Scan scan value into the list, implements sql.Scanner interface
func (l *Int64List) Scan(val interface{}) error {
	if val == nil {
		*l = nil
		return nil
	}
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	default:
		return errors.New(fmt.Sprint("failed to unmarshal int64 list value:", val))
	}
	t := make([]int64, 0)
	err := json.Unmarshal(ba, &t)
	*l = Int64List(t)
	return err
}

// GormDataType gorm common data type
func (Int64List) GormDataType() string {
	return "int64list"
}

// GormDBDataType gorm db data type
func (Int64List) GormDBDataType(db *gorm.DB, field *schema.Field) string {
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
