package companyfile

import (
	"context"
	"path/filepath"
	"sync"
)

// pathLocker serializes writers of the same file.
type pathLocker struct {
	mtx   sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	sem  chan struct{}
	refs int
}

func newPathLocker() *pathLocker {
	return &pathLocker{locks: make(map[string]*pathLock)}
}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// lock blocks until the path is free or ctx is done. The returned function
// must be called exactly once to unlock.
func (l *pathLocker) lock(ctx context.Context, path string) (func(), error) {
	key := lockKey(path)

	l.mtx.Lock()
	pl, ok := l.locks[key]
	if !ok {
		pl = &pathLock{sem: make(chan struct{}, 1)}
		l.locks[key] = pl
	}
	pl.refs++
	l.mtx.Unlock()

	select {
	case pl.sem <- struct{}{}:
		return func() {
			<-pl.sem
			l.release(key, pl)
		}, nil
	case <-ctx.Done():
		l.release(key, pl)
		return nil, ctx.Err()
	}
}

func (l *pathLocker) release(key string, pl *pathLock) {
	l.mtx.Lock()
	if pl.refs--; pl.refs == 0 {
		delete(l.locks, key)
	}
	l.mtx.Unlock()
}
