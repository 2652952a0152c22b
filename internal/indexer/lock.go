package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
)

// LockName is the lock file a build holds inside its output directory.
const LockName = "LOCK"

type buildLock struct {
	path string
}

// acquireLock creates the lock file exclusively. A lock left behind by a
// crashed build must be removed by hand.
func acquireLock(dir string) (*buildLock, error) {
	path := filepath.Join(dir, LockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrBuildInProgress, dir)
		}
		return nil, fmt.Errorf("%w: creating lock file: %w", apperrors.ErrStorageFailure, err)
	}
	fmt.Fprintf(f, "pid=%d started=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: closing lock file: %w", apperrors.ErrStorageFailure, err)
	}
	return &buildLock{path: path}, nil
}

func (l *buildLock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}
