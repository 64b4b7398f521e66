package util

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashReader consumes r and returns its hex SHA-256 digest and length.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
