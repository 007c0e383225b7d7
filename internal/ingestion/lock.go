package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"eventscout/internal/services"
)

// ErrRunInProgress reports that another run holds the city's lock.
var ErrRunInProgress = fmt.Errorf("%w: ingestion already running for this city", services.ErrConflict)

// cityLocks serializes runs per city inside the process and, when dir is
// set, across processes through advisory file locks.
type cityLocks struct {
	dir    string
	mu     sync.Mutex
	active map[string]struct{}
}

func newCityLocks() *cityLocks {
	return &cityLocks{active: make(map[string]struct{})}
}

func (l *cityLocks) acquire(city string) (func(), error) {
	l.mu.Lock()
	if _, busy := l.active[city]; busy {
		l.mu.Unlock()
		return nil, ErrRunInProgress
	}
	l.active[city] = struct{}{}
	l.mu.Unlock()

	releaseLocal := func() {
		l.mu.Lock()
		delete(l.active, city)
		l.mu.Unlock()
	}
	if l.dir == "" {
		return releaseLocal, nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		releaseLocal()
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fileLock := flock.New(LockPath(l.dir, city))
	ok, err := fileLock.TryLock()
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("acquire city lock: %w", err)
	}
	if !ok {
		releaseLocal()
		return nil, ErrRunInProgress
	}
	return func() {
		_ = fileLock.Unlock()
		releaseLocal()
	}, nil
}

// LockPath is the lock file guarding runs for city. City names are hashed
// so any script or punctuation maps to a safe file name.
func LockPath(dir, city string) string {
	sum := sha256.Sum256([]byte(city))
	return filepath.Join(dir, "city-"+hex.EncodeToString(sum[:8])+".lock")
}
