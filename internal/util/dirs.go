package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// StrideDir returns the path to the ~/.stride directory.
func StrideDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".stride"), nil
}

// SharedDir returns the directory holding state shared across stride
// processes (the timer record and the live status file). It honors
// STRIDE_SHARED_DIR so the widget binary and tests can point every process
// at the same location.
func SharedDir() (string, error) {
	if dir := os.Getenv("STRIDE_SHARED_DIR"); dir != "" {
		return dir, nil
	}
	base, err := StrideDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "shared"), nil
}

// EnsureDir ensures that a directory exists, creating it if necessary.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
