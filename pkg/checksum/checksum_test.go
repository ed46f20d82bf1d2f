package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	err := os.WriteFile(path, []byte(content), 0o644)
	assert.NoError(t, err)
	return path
}

func TestNewComputer_UnknownAlgorithm(t *testing.T) {
	computer, err := NewComputer("crc32")
	assert.Nil(t, computer)
	assert.Error(t, err)
}

func TestCompute_Deterministic(t *testing.T) {
	path := writeFile(t, "the same bytes")

	computer, err := NewComputer(AlgorithmSHA256)
	assert.NoError(t, err)

	first, err := computer.Compute(path)
	assert.NoError(t, err)
	second, err := computer.Compute(path)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "sha256 digest should be 64 hex chars")
}

func TestCompute_SingleByteChangesDigest(t *testing.T) {
	computer, err := NewComputer(AlgorithmSHA256)
	assert.NoError(t, err)

	original, err := computer.Compute(writeFile(t, "version one"))
	assert.NoError(t, err)
	changed, err := computer.Compute(writeFile(t, "version onf"))
	assert.NoError(t, err)

	assert.NotEqual(t, original, changed)
}

func TestCompute_DigestLengths(t *testing.T) {
	path := writeFile(t, "payload")

	tests := []struct {
		algorithm string
		hexLen    int
	}{
		{AlgorithmSHA256, 64},
		{AlgorithmMD5, 32},
		{AlgorithmXXHash, 16},
	}

	for _, tc := range tests {
		t.Run(tc.algorithm, func(t *testing.T) {
			computer, err := NewComputer(tc.algorithm)
			assert.NoError(t, err)

			digest, err := computer.Compute(path)
			assert.NoError(t, err)
			assert.Len(t, digest, tc.hexLen)
		})
	}
}

func TestCompute_AlgorithmsDisagree(t *testing.T) {
	path := writeFile(t, "payload")

	sha, _ := NewComputer(AlgorithmSHA256)
	md, _ := NewComputer(AlgorithmMD5)

	shaSum, err := sha.Compute(path)
	assert.NoError(t, err)
	mdSum, err := md.Compute(path)
	assert.NoError(t, err)

	assert.NotEqual(t, shaSum, mdSum)
}

func TestCompute_MissingFile(t *testing.T) {
	computer, err := NewComputer(AlgorithmSHA256)
	assert.NoError(t, err)

	_, err = computer.Compute(filepath.Join(t.TempDir(), "gone.xlsx"))
	assert.Error(t, err)
}
