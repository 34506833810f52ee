package recipe

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DomainContent prefixes content hashes. The version suffix allows the
// field set to change without colliding with old hashes.
const DomainContent = "larder/recipe/v1"

// ContentHash returns a stable digest over every field of r. Two recipes
// with the same id and different content hash differently; this is what
// Live Query uses to report a row as updated.
//
// Format: SHA256(domain + 0x00 + fields), each field length-prefixed so
// adjacent fields cannot shift into each other.
func ContentHash(r Recipe) string {
	h := sha256.New()
	h.Write([]byte(DomainContent))
	h.Write([]byte{0x00})

	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}

	writeField([]byte(r.ID))
	writeField([]byte(r.Name))
	writeField([]byte(r.Description))
	writeField([]byte(r.Instructions))

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], uint64(int64(r.Difficulty)))
	writeField(num[:])

	binary.BigEndian.PutUint64(num[:], uint64(len(r.Images)))
	writeField(num[:])
	for _, img := range r.Images {
		writeField([]byte(img))
	}

	if r.HasLastUpdated() {
		binary.BigEndian.PutUint64(num[:], uint64(r.LastUpdated.UnixNano()))
		writeField(num[:])
	} else {
		writeField(nil)
	}

	return hex.EncodeToString(h.Sum(nil))
}
