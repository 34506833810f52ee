package recipe

import (
	"encoding/json"
	"time"
)

// Difficulty bounds. Values outside are clamped at parse time.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Recipe is the sole persisted entity.
//
// Optional text fields use the empty string for "absent". LastUpdated uses
// the zero time.Time for "absent"; the epoch itself is a valid timestamp.
type Recipe struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Description  string    `json:"description,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Difficulty   int       `json:"difficulty"`
	Images       []string  `json:"images"`
	LastUpdated  time.Time `json:"last_updated,omitempty"`
}

// HasLastUpdated reports whether the remote source supplied a timestamp.
func (r Recipe) HasLastUpdated() bool {
	return !r.LastUpdated.IsZero()
}

// Clone returns a deep copy so callers can hand rows across goroutines.
func (r Recipe) Clone() Recipe {
	c := r
	if r.Images != nil {
		c.Images = make([]string, len(r.Images))
		copy(c.Images, r.Images)
	}
	return c
}

// RawRecord is one element of the remote "recipes" array, keyed by the
// payload attribute names. Values stay undecoded until ParseRecord so a bad
// field can be dropped without failing the record.
type RawRecord map[string]json.RawMessage

// Payload attribute names recognized in a RawRecord.
const (
	AttrUUID         = "uuid"
	AttrName         = "name"
	AttrImages       = "images"
	AttrLastUpdated  = "lastUpdated"
	AttrDescription  = "description"
	AttrInstructions = "instructions"
	AttrDifficulty   = "difficulty"
)
