package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/masomo-schedule/core/schedule"
)

// DB is a process-local store with the same guarantees as the SQL one: transactions are
// serialized and atomic, occurrences are unique per (series, start).
type DB struct {
	mutex       sync.RWMutex
	series      map[string]schedule.Series
	occurrences map[string]schedule.Occurrence
	faults      map[string]error
}

func NewDB() *DB {
	return &DB{
		series:      make(map[string]schedule.Series),
		occurrences: make(map[string]schedule.Occurrence),
		faults:      make(map[string]error),
	}
}

// InjectFault makes the next call to op (a repository method name) fail with err.
func (db *DB) InjectFault(op string, err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.faults[op] = err
}

// fault pops the pending fault of op. Callers must hold the write lock or be inside a transaction.
func (db *DB) fault(op string) error {
	err, ok := db.faults[op]
	if !ok {
		return nil
	}
	delete(db.faults, op)
	return schedule.NewStorageError(op, err)
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.series = make(map[string]schedule.Series)
	db.occurrences = make(map[string]schedule.Occurrence)
	db.faults = make(map[string]error)
}

type snapshot struct {
	series      map[string]schedule.Series
	occurrences map[string]schedule.Occurrence
}

func (db *DB) snapshot() snapshot {
	snap := snapshot{
		series:      make(map[string]schedule.Series, len(db.series)),
		occurrences: make(map[string]schedule.Occurrence, len(db.occurrences)),
	}
	for k, v := range db.series {
		snap.series[k] = v
	}
	for k, v := range db.occurrences {
		snap.occurrences[k] = v
	}
	return snap
}

func (db *DB) restore(snap snapshot) {
	db.series = snap.series
	db.occurrences = snap.occurrences
}

func occurrenceKey(seriesID string, start time.Time) string {
	return seriesID + "@" + start.UTC().Format(time.RFC3339Nano)
}
