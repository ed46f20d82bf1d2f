package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Supported hash algorithms.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmMD5    = "md5"
	AlgorithmXXHash = "xxhash64"
)

// chunkSize bounds how much of a file is held in memory while hashing.
const chunkSize = 64 * 1024

// Computer calculates file content checksums for change detection. The
// algorithm is fixed at construction; identical bytes always yield the
// same hex digest.
type Computer struct {
	algorithm string
}

// NewComputer returns a Computer for the given algorithm, or an error if
// the algorithm is not one of sha256, md5 or xxhash64.
func NewComputer(algorithm string) (*Computer, error) {
	switch algorithm {
	case AlgorithmSHA256, AlgorithmMD5, AlgorithmXXHash:
		return &Computer{algorithm: algorithm}, nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %q", algorithm)
	}
}

func (c *Computer) newHasher() hash.Hash {
	switch c.algorithm {
	case AlgorithmMD5:
		return md5.New()
	case AlgorithmXXHash:
		return xxhash.New()
	default:
		return sha256.New()
	}
}

// Compute reads the file in bounded chunks and returns the hex-encoded
// digest of its full contents.
func (c *Computer) Compute(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := c.newHasher()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(hasher, file, buf); err != nil {
		return "", fmt.Errorf("failed to read file %s for hashing: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Algorithm reports the configured algorithm name.
func (c *Computer) Algorithm() string {
	return c.algorithm
}
