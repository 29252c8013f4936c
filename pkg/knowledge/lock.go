package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/entrhq/recall/pkg/logging"
)

// ErrLockTimeout is returned when the per-directory write lock cannot be
// acquired within the configured window.
var ErrLockTimeout = errors.New("knowledge: timed out acquiring directory lock")

// Default lock acquisition parameters.
const (
	DefaultLockTimeout    = 5000 * time.Millisecond
	DefaultLockRetryDelay = 50 * time.Millisecond
)

// dirLock is an exclusive advisory lock on one directory's knowledge folder.
// It uses an OS file lock on the .lock sentinel rather than the sentinel's
// existence, so two concurrent writers cannot both acquire it. The sentinel
// file is left in place after release; only the OS lock conveys ownership.
type dirLock struct {
	fl  *flock.Flock
	log *logging.Logger
}

// acquireDirLock takes the exclusive lock for dir's knowledge folder,
// retrying every retryDelay until timeout expires. The knowledge folder is
// created if absent.
func acquireDirLock(ctx context.Context, dir string, timeout, retryDelay time.Duration, log *logging.Logger) (*dirLock, error) {
	knowledgeDir := filepath.Join(dir, KnowledgeDirName)
	if err := os.MkdirAll(knowledgeDir, 0750); err != nil {
		return nil, fmt.Errorf("knowledge: create knowledge dir %s: %w", knowledgeDir, err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(filepath.Join(knowledgeDir, LockFileName))
	locked, err := fl.TryLockContext(lockCtx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s (waited %s)", ErrLockTimeout, dir, timeout)
		}
		return nil, fmt.Errorf("knowledge: acquire lock for %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s (waited %s)", ErrLockTimeout, dir, timeout)
	}

	// Record the writer id in the sentinel for debuggability. The lock is
	// held on the open descriptor, so truncating the path is safe here.
	if err := os.WriteFile(fl.Path(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600); err != nil {
		log.Warnf("failed to record writer id in %s: %v", fl.Path(), err)
	}

	return &dirLock{fl: fl, log: log}, nil
}

// release drops the lock. Failures are logged, not raised: the OS reclaims
// advisory locks when the process exits, so a failed release cannot wedge
// other writers.
func (dl *dirLock) release() {
	if err := dl.fl.Unlock(); err != nil {
		dl.log.Warnf("failed to release lock %s: %v", dl.fl.Path(), err)
	}
}
