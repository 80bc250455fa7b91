package models

import (
	"errors"
	"fmt"
)

// Generation errors. Callers match them with errors.Is.
var (
	// ErrConfiguration indicates invalid settings detected at setup time.
	// It is fatal to the run and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceCapability indicates a registered source cannot do what its
	// options ask for, e.g. partial update without a primary key.
	ErrSourceCapability = errors.New("source capability error")

	// ErrAdapter wraps any failure raised while counting or fetching records.
	ErrAdapter = errors.New("adapter failure")

	// ErrKeyOrder indicates a source returned primary keys out of order.
	ErrKeyOrder = errors.New("primary key out of order")

	// ErrLockContention indicates another generation run holds the output
	// directory. It is recoverable: the run returns without touching output.
	ErrLockContention = errors.New("generation already running")
)

// BatchError carries the position of a failed fetch.
type BatchError struct {
	Source string
	File   int
	Batch  int64
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("source %s: file %d batch %d: %v", e.Source, e.File, e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
