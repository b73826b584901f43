package molecules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNonNumericID is returned when a molecule id cannot be read as an integer.
var ErrNonNumericID = errors.New("each molecule id must be a numeric ID")

// IDList is a molecule id set as submitted by clients. It decodes a JSON array of
// numbers or numeric strings, or a single comma separated string. Null and empty
// entries are dropped.
type IDList []int64

// UnmarshalJSON implements json.Unmarshaler.
func (l *IDList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		ids, err := parseParts(strings.Split(raw, ","))
		if err != nil {
			return err
		}
		*l = ids
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("molecule ids: %w", ErrNonNumericID)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if bytes.Equal(item, []byte("null")) {
			continue
		}
		if len(item) > 0 && item[0] == '"' {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return err
			}
			parts = append(parts, s)
			continue
		}
		parts = append(parts, string(item))
	}
	ids, err := parseParts(parts)
	if err != nil {
		return err
	}
	*l = ids
	return nil
}

func parseParts(parts []string) (IDList, error) {
	ids := make(IDList, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("molecule id %q: %w", part, ErrNonNumericID)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
