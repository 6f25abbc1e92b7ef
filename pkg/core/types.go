package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringList is a small gorm column shim for a JSON-encoded []string,
// used for free-text provenance fields (reasons, top votes) that don't
// warrant their own join table.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), s)
	case []byte:
		return json.Unmarshal(v, s)
	default:
		return errors.New("core: StringList.Scan: unsupported type")
	}
}
