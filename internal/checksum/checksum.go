// Package checksum provides the deterministic content hashing used for
// artifact registration and rollback integrity snapshots.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Sum returns the lowercase hex SHA-256 of data.
func Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SumString returns the lowercase hex SHA-256 of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// File returns the lowercase hex SHA-256 of the file at path. A missing file
// hashes to the empty string with a nil error, so callers can snapshot paths
// that do not exist yet.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
