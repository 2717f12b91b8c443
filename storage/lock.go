package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const lockFileName = "termchat.lock"

// Lock records the running process in <dataDir>/termchat.lock. The store is
// single-writer; a second instance uses CheckLock to warn before writing.
func Lock(dataDir string) error {
	lockPath := filepath.Join(dataDir, lockFileName)
	return os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0600)
}

// Unlock removes the lock file. A missing file is not an error.
func Unlock(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, lockFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// CheckLock reports whether another process holds the lock and its PID.
// Unparseable lock files are treated as stale and removed.
func CheckLock(dataDir string) (bool, int, error) {
	lockPath := filepath.Join(dataDir, lockFileName)

	data, err := os.ReadFile(lockPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		_ = os.Remove(lockPath)
		return false, 0, nil
	}
	if pid == os.Getpid() {
		return false, pid, nil
	}

	// os.FindProcess never fails on Unix; this only catches Windows stale locks
	if _, err := os.FindProcess(pid); err != nil {
		_ = os.Remove(lockPath)
		return false, 0, nil
	}

	return true, pid, nil
}
