package pager

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the pager.
var (
	// ErrInvalidPageID is returned when a source receives a PageID of an
	// unexpected dynamic type.
	ErrInvalidPageID = errors.New("invalid page identifier")

	// ErrMissingIdentify is returned by New when no identity projection
	// is configured.
	ErrMissingIdentify = errors.New("identify function is required")

	// ErrMissingSource is returned by New when no page source is given.
	ErrMissingSource = errors.New("page source is required")
)

// Op names the pagination operation that produced an error.
type Op string

const (
	// OpFetchNextPage tags errors from FetchNextPage.
	OpFetchNextPage Op = "fetch_next_page"

	// OpRefresh tags errors from Refresh.
	OpRefresh Op = "refresh"

	// OpRemoveAllAndRefresh tags errors from RemoveAllAndRefresh.
	OpRemoveAllAndRefresh Op = "remove_all_and_refresh"
)

// Error tags a page source failure with the operation that triggered it.
// The underlying error is wrapped unchanged. Cancellation is filtered out
// before classification and never produces an Error.
type Error struct {
	Op  Op
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("pager: %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// isCancellation reports whether err denotes a cancelled fetch. Deadline
// expiry is a real failure and is not filtered.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
