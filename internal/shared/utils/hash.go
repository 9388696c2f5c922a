package utils

import (
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	BLAKE2b256 HashAlgorithm = "blake2b-256"
	// Extensible: add more algorithms here
)

// Hasher computes package content digests.
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(BLAKE2b256)
}

// Hash computes a hex-encoded digest of the input data.
func (h *Hasher) Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile computes a hex-encoded digest of a file's contents without
// loading the whole file into memory.
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	digest, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(digest, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
