package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// indexLock is an advisory, process-wide lock on a state directory, held
// while a snapshot is written or cleared.
type indexLock struct {
	file *os.File
}

// acquireLock takes the lock without waiting. It returns ErrLocked when
// another process holds it.
func acquireLock(dir string) (*indexLock, error) {
	f, err := os.OpenFile(filepath.Join(dir, lockName), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open index lock: %w", err)
	}
	held, err := tryLock(f)
	if err != nil || !held {
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire index lock: %w", err)
		}
		return nil, ErrLocked
	}
	return &indexLock{file: f}, nil
}

// Release unlocks and closes the lock file. It is safe on a nil lock.
func (l *indexLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlock(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
