package biz

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhase rejects unknown phase identifiers before any mutation.
	ErrInvalidPhase = errors.New("invalid phase")
)

// DataSourceError reports a missing or unparseable input file.
type DataSourceError struct {
	File string
	Err  error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.File, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// StoreError reports a failure of the relational store during Op.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr wraps err as a StoreError unless it is already classified.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var dse *DataSourceError
	var se *StoreError
	if errors.Is(err, ErrInvalidPhase) || errors.As(err, &dse) || errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
