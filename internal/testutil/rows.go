package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeRows is a configurable in-memory RowFetcher. It records every
// (offset, limit) call in order and tracks the observed read
// concurrency.
type FakeRows[E any] struct {
	rows     []E
	maxReads int

	mu        sync.Mutex
	delay     time.Duration
	fetches   [][2]int
	active    int
	maxActive int
	failNext  error
}

// NewFakeRows creates a fetcher over rows that reports maxReads as its
// concurrent read capacity.
func NewFakeRows[E any](maxReads int, rows ...E) *FakeRows[E] {
	return &FakeRows[E]{rows: rows, maxReads: maxReads}
}

// SetDelay makes every Rows call take at least d.
func (f *FakeRows[E]) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// FailNext makes the next Rows call return err.
func (f *FakeRows[E]) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

// Count implements window.RowFetcher.
func (f *FakeRows[E]) Count(ctx context.Context) (int, error) {
	return len(f.rows), nil
}

// Rows implements window.RowFetcher.
func (f *FakeRows[E]) Rows(ctx context.Context, offset, limit int) ([]E, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, [2]int{offset, limit})
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	delay := f.delay
	failure := f.failNext
	f.failNext = nil
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if offset < 0 || offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return append([]E(nil), f.rows[offset:end]...), nil
}

// MaxConcurrentReads implements window.RowFetcher.
func (f *FakeRows[E]) MaxConcurrentReads() int { return f.maxReads }

// Fetches returns the recorded (offset, limit) calls in order.
func (f *FakeRows[E]) Fetches() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.fetches...)
}

// FetchedPages returns the page indexes of the recorded calls, in order,
// for the given page size.
func (f *FakeRows[E]) FetchedPages(pageSize int) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := make([]int, 0, len(f.fetches))
	for _, call := range f.fetches {
		pages = append(pages, call[0]/pageSize)
	}
	return pages
}

// MaxObservedConcurrency returns the highest number of overlapping Rows
// calls seen so far.
func (f *FakeRows[E]) MaxObservedConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
