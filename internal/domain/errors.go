package domain

import (
	"errors"
	"fmt"
)

var ErrNoHeader = errors.New("input has no header row")

// raw text could not be read as delimited tabular data
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// a single row dropped during parsing; collected in the parse report
type RowRejected struct {
	Line   int    `json:"line"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (r RowRejected) Error() string {
	return fmt.Sprintf("line %d rejected: %s", r.Line, r.Reason)
}

// the record store could not be reached or refused the whole operation
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// WrapStoreError tags err as a store failure unless it already is one.
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var unavailable *StoreUnavailableError
	if errors.As(err, &unavailable) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

// some chunks of an upsert were written and others were not
type PartialWriteError struct {
	Written int
	Failed  int
	Errors  []error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %d records written, %d failed (%d errors)", e.Written, e.Failed, len(e.Errors))
}

func (e *PartialWriteError) Unwrap() []error {
	return e.Errors
}
