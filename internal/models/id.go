package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a remote identifier. The service emits both numeric and string ids,
// so it decodes from either and always encodes as a string.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// IDFromInt builds an ID from a numeric identifier.
func IDFromInt(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}
