package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/entrhq/recall/pkg/logging"
)

// Store is the lock-guarded writer for per-directory fact logs.
type Store struct {
	lockTimeout    time.Duration
	lockRetryDelay time.Duration
	log            *logging.Logger
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithLockTimeout overrides the lock acquisition timeout.
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.lockTimeout = d }
}

// WithLockRetryDelay overrides the lock retry poll interval.
func WithLockRetryDelay(d time.Duration) StoreOption {
	return func(s *Store) { s.lockRetryDelay = d }
}

// NewStore creates a fact store writer with default lock parameters.
func NewStore(opts ...StoreOption) *Store {
	log, _ := logging.NewLogger("knowledge.store")
	s := &Store{
		lockTimeout:    DefaultLockTimeout,
		lockRetryDelay: DefaultLockRetryDelay,
		log:            log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append persists a fact to directory's log. It creates the knowledge folder
// if needed, takes the directory's exclusive lock, appends the fact as one
// JSON line, and releases the lock. It returns ErrLockTimeout if the lock
// cannot be acquired in time; IO failures propagate because a silent write
// failure would corrupt the knowledge base invisibly.
func (s *Store) Append(ctx context.Context, directory string, fact *Fact) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	fact.Normalize()

	lock, err := acquireDirLock(ctx, directory, s.lockTimeout, s.lockRetryDelay, s.log)
	if err != nil {
		return err
	}
	defer lock.release()

	logPath := FactLogPath(directory)
	existing, err := os.ReadFile(logPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("knowledge: read fact log %s: %w", logPath, err)
	}

	line, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("knowledge: serialize fact %s: %w", fact.ID, err)
	}

	content := append(existing, line...)
	content = append(content, '\n')
	if err := os.WriteFile(logPath, content, 0644); err != nil {
		return fmt.Errorf("knowledge: write fact log %s: %w", logPath, err)
	}

	s.log.Debugf("appended fact %s to %s", fact.ID, logPath)
	return nil
}
