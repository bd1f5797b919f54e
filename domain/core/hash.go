package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// InputHash identifies a distance-rule computation by its inputs and parameters.
type InputHash Hash

func (h InputHash) String() string { return Hash(h).String() }

// ComputeInputHash hashes parameter values (sorted by key) followed by the raw
// bits of every float slice, in order. Slice lengths are mixed in so that
// differently shaped inputs with the same values do not collide.
func ComputeInputHash(params map[string]interface{}, arrays ...[]float64) InputHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
		data.WriteString(";")
	}

	h := sha256.New()
	h.Write([]byte(data.String()))
	var buf [8]byte
	for _, arr := range arrays {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(arr)))
		h.Write(buf[:])
		for _, v := range arr {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return InputHash(hex.EncodeToString(h.Sum(nil)))
}
