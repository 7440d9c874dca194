package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrSeriesNotFound          = errors.New("series not found")
	ErrOccurrenceNotFound      = errors.New("occurrence not found")
	ErrConcurrentModification  = errors.New("series was modified concurrently; reload and retry")
	ErrHasDependents           = errors.New("occurrences are referenced by dependent records")
	ErrOccurrenceOwnedBySeries = errors.New("occurrence belongs to a series; edit or delete the series instead")
	ErrDuplicateOccurrence     = errors.New("an occurrence already exists for this series at this start time")
	ErrUnknownTimezone         = errors.New("unknown time zone")
)

// StorageError reports a failure of the underlying store. Operations failing with it had no visible effect.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsStorageFailure(err error) bool {
	var sErr *StorageError
	return errors.As(err, &sErr)
}
