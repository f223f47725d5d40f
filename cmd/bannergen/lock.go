package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// acquireLock takes an exclusive lock on path so only one watcher renders to
// a given output. The directory is created if needed, as the output's is on
// the first write. The returned file must stay open while the lock is held.
func acquireLock(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("another bannergen is watching this output: %w", err)
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	}
	return f, nil
}

// releaseLock unlocks, closes and removes the lock file.
func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = unlockFile(f)
	f.Close()
	os.Remove(f.Name())
}
