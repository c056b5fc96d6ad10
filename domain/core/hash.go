package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
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

// Short returns the first 12 hex characters, enough to tell runs apart in logs.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// FingerprintTable hashes column names, feature values and labels so two runs
// over the same table can be recognised.
func FingerprintTable(columns []string, rows [][]float64, labels []string) Hash {
	hasher := sha256.New()
	var buf [8]byte
	for _, c := range columns {
		hasher.Write([]byte(c))
		hasher.Write([]byte{0})
	}
	for i, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			hasher.Write(buf[:])
		}
		if i < len(labels) {
			hasher.Write([]byte(labels[i]))
		}
		hasher.Write([]byte{'\n'})
	}
	return Hash(hex.EncodeToString(hasher.Sum(nil)))
}
