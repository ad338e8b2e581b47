// Package fileid derives stable identities for local files so a watched file is uploaded once.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const prefix = "file:"

// ForPath returns an identity for the cleaned path alone.
func ForPath(path string) string {
	return hash(filepath.Clean(path))
}

// ForVersion returns an identity for one version of a file: the same path with a
// different size or modification time is a new identity.
func ForVersion(path string, size int64, modTime time.Time) string {
	return hash(fmt.Sprintf("%s\x00%d\x00%d", filepath.Clean(path), size, modTime.UnixNano()))
}

// ForFile stats path and returns its version identity. The path is made absolute first.
func ForFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return ForVersion(abs, info.Size(), info.ModTime()), nil
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return prefix + hex.EncodeToString(sum[:])
}
