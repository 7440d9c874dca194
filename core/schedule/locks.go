package schedule

import "sync"

// seriesLocks hands out one mutex per series id; entries are dropped once no goroutine holds or waits on them.
type seriesLocks struct {
	mu    sync.Mutex
	locks map[string]*seriesLock
}

type seriesLock struct {
	sync.Mutex
	refs int
}

func newSeriesLocks() *seriesLocks {
	return &seriesLocks{locks: make(map[string]*seriesLock)}
}

// lock blocks until the series is free and returns the matching unlock func.
func (l *seriesLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &seriesLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
