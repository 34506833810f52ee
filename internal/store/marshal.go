package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// marshalImages converts the image list to JSON TEXT for storage.
// A nil list is stored as "[]" so reads always return a non-nil slice.
func marshalImages(images []string) (string, error) {
	if len(images) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("marshal images: %w", err)
	}
	return string(data), nil
}

// unmarshalImages parses JSON TEXT to the image list.
func unmarshalImages(data string) ([]string, error) {
	images := []string{}
	if data == "" || data == "[]" {
		return images, nil
	}
	if err := json.Unmarshal([]byte(data), &images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}
	return images, nil
}

// marshalTime stores a timestamp as Unix nanoseconds; the zero time is NULL.
func marshalTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// unmarshalTime is the inverse of marshalTime. Times are returned in UTC.
func unmarshalTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}
