package testutil

import (
	"encoding/json"

	"github.com/roach88/larder/internal/recipe"
)

// Record describes one remote recipe record. Nil fields are omitted from
// the encoded object; Extra adds arbitrary keys (including malformed values).
type Record struct {
	UUID         any
	Name         any
	Description  any
	Instructions any
	Difficulty   any
	Images       any
	LastUpdated  any
	Extra        map[string]any
}

// R is shorthand for a record with a test id and a name.
func R(n int, name string) Record {
	return Record{UUID: ID(n), Name: name}
}

// Object returns the record as a JSON-ready map.
func (r Record) Object() map[string]any {
	obj := make(map[string]any, 8+len(r.Extra))
	set := func(key string, v any) {
		if v != nil {
			obj[key] = v
		}
	}
	set(recipe.AttrUUID, r.UUID)
	set(recipe.AttrName, r.Name)
	set(recipe.AttrDescription, r.Description)
	set(recipe.AttrInstructions, r.Instructions)
	set(recipe.AttrDifficulty, r.Difficulty)
	set(recipe.AttrImages, r.Images)
	set(recipe.AttrLastUpdated, r.LastUpdated)
	for k, v := range r.Extra {
		obj[k] = v
	}
	return obj
}

// Raw encodes the record as a recipe.RawRecord.
func (r Record) Raw() recipe.RawRecord {
	raw := make(recipe.RawRecord)
	for k, v := range r.Object() {
		raw[k] = mustJSON(v)
	}
	return raw
}

// Raws encodes every record.
func Raws(records ...Record) []recipe.RawRecord {
	out := make([]recipe.RawRecord, len(records))
	for i, r := range records {
		out[i] = r.Raw()
	}
	return out
}

// Payload encodes {"recipes": [...]}.
func Payload(records ...Record) []byte {
	objs := make([]map[string]any, len(records))
	for i, r := range records {
		objs[i] = r.Object()
	}
	return mustJSON(map[string]any{"recipes": objs})
}

// ErrorPayload encodes {"error": {"message": msg}}.
func ErrorPayload(msg string) []byte {
	return mustJSON(map[string]any{"error": map[string]any{"message": msg}})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
