package recipe

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoID is returned by ParseRecord when the record carries no resolvable
// identifier. Such records cannot be reconciled and are dropped from a batch.
var ErrNoID = errors.New("record has no resolvable id")

// ParseRecord converts a raw remote record into a normalized Recipe.
//
// Only a missing or unparseable uuid fails the record. Every other field
// problem is recovered by clamping or dropping that field.
func ParseRecord(raw RawRecord) (Recipe, error) {
	id, ok := parseID(raw[AttrUUID])
	if !ok {
		return Recipe{}, ErrNoID
	}

	return Recipe{
		ID:           id,
		Name:         parseText(raw[AttrName]),
		Description:  parseText(raw[AttrDescription]),
		Instructions: parseText(raw[AttrInstructions]),
		Difficulty:   parseDifficulty(raw[AttrDifficulty]),
		Images:       parseImages(raw[AttrImages]),
		LastUpdated:  parseEpochSeconds(raw[AttrLastUpdated]),
	}, nil
}

// ParseBatch parses every record, returning the valid recipes in input order
// and the number of records dropped. When an id repeats, the last occurrence
// wins but keeps the position of the first.
func ParseBatch(batch []RawRecord) ([]Recipe, int) {
	out := make([]Recipe, 0, len(batch))
	index := make(map[string]int, len(batch))
	dropped := 0

	for _, raw := range batch {
		r, err := ParseRecord(raw)
		if err != nil {
			dropped++
			continue
		}
		if i, seen := index[r.ID]; seen {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}

	return out, dropped
}

// ClampDifficulty forces d into [MinDifficulty, MaxDifficulty].
func ClampDifficulty(d int) int {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// parseID resolves the uuid attribute. Ids are opaque: any non-blank string
// is accepted. Values that parse as a UUID are stored in canonical lowercase
// form so "ABC..." and "abc..." reconcile to the same Recipe.
func parseID(data json.RawMessage) (string, bool) {
	var s string
	if !present(data) || json.Unmarshal(data, &s) != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if id, err := uuid.Parse(s); err == nil {
		return id.String(), true
	}
	return s, true
}

// present reports whether a raw attribute carries a non-null value.
func present(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func parseText(data json.RawMessage) string {
	var s string
	if !present(data) || json.Unmarshal(data, &s) != nil {
		return ""
	}
	return s
}

// parseDifficulty accepts any integral JSON number. Absent, null, fractional
// or non-numeric values default to MinDifficulty.
func parseDifficulty(data json.RawMessage) int {
	var f float64
	if !present(data) || json.Unmarshal(data, &f) != nil {
		return MinDifficulty
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return MinDifficulty
	}
	if f > MaxDifficulty {
		return MaxDifficulty
	}
	if f < MinDifficulty {
		return MinDifficulty
	}
	return int(f)
}

// parseImages keeps well-formed absolute URIs and drops everything else,
// including non-string elements. A non-array value yields no images.
func parseImages(data json.RawMessage) []string {
	var elems []json.RawMessage
	if !present(data) || json.Unmarshal(data, &elems) != nil {
		return []string{}
	}

	images := make([]string, 0, len(elems))
	for _, elem := range elems {
		var s string
		if json.Unmarshal(elem, &s) != nil {
			continue
		}
		if u, ok := ParseImageURI(s); ok {
			images = append(images, u)
		}
	}
	return images
}

// ParseImageURI reports whether s is an absolute URI with a host (or an
// opaque part, e.g. data: URIs) and returns it unchanged when it is.
func ParseImageURI(s string) (string, bool) {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	if u.Host == "" && u.Opaque == "" {
		return "", false
	}
	return s, true
}

// maxEpochSeconds keeps timestamps inside the int64 nanosecond range the
// store persists.
const maxEpochSeconds = 9e9

// parseEpochSeconds decodes a numeric epoch-seconds value, keeping the
// fractional part with nanosecond precision.
func parseEpochSeconds(data json.RawMessage) time.Time {
	var f float64
	if !present(data) || json.Unmarshal(data, &f) != nil {
		return time.Time{}
	}
	if math.IsNaN(f) || math.Abs(f) > maxEpochSeconds {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
