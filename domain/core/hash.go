package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
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

// SetFingerprint identifies a study set by its contents, independent of order
// or labels. Two sets with the same (effect, se) pairs hash identically.
type SetFingerprint Hash

func (h SetFingerprint) String() string { return Hash(h).String() }

// ComputeSetFingerprint hashes the sorted (effect, se) pairs of a study set.
func ComputeSetFingerprint(effects, ses []float64) SetFingerprint {
	pairs := make([]string, 0, len(effects))
	for i := range effects {
		var se float64
		if i < len(ses) {
			se = ses[i]
		}
		pairs = append(pairs,
			strconv.FormatFloat(effects[i], 'g', -1, 64)+":"+
				strconv.FormatFloat(se, 'g', -1, 64))
	}
	sort.Strings(pairs)

	var data strings.Builder
	for _, p := range pairs {
		data.WriteString(p)
		data.WriteString("\n")
	}
	return SetFingerprint(NewHash([]byte(data.String())))
}
