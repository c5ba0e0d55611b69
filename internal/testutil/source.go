// Package testutil provides scripted page sources and row fetchers for
// testing pagination behavior.
package testutil

import (
	"context"
	"sync"

	"github.com/Sternrassler/go-pagination/pkg/pager"
)

// FakeSource is a configurable in-memory PageSource. Pages are numbered
// from 0 over a fixed element slice; fetches can be held open, failed or
// counted to exercise concurrency and error paths.
type FakeSource[E any] struct {
	pageSize int

	mu       sync.Mutex
	elements []E
	calls    map[int]int
	total    int
	failures map[int]error
	gates    map[int]chan struct{}
}

// NewFakeSource creates a source serving elements in pages of pageSize.
func NewFakeSource[E any](pageSize int, elements ...E) *FakeSource[E] {
	return &FakeSource[E]{
		pageSize: pageSize,
		elements: elements,
		calls:    make(map[int]int),
		failures: make(map[int]error),
		gates:    make(map[int]chan struct{}),
	}
}

// FirstPageID implements pager.PageSource.
func (s *FakeSource[E]) FirstPageID() pager.PageID { return 0 }

// Page implements pager.PageSource.
func (s *FakeSource[E]) Page(ctx context.Context, id pager.PageID) (pager.Page[E], error) {
	n, ok := id.(int)
	if !ok {
		return pager.Page[E]{}, pager.ErrInvalidPageID
	}

	s.mu.Lock()
	s.calls[n]++
	s.total++
	gate := s.gates[n]
	failure := s.failures[n]
	if failure != nil {
		delete(s.failures, n)
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return pager.Page[E]{}, ctx.Err()
		}
	}
	if failure != nil {
		return pager.Page[E]{}, failure
	}
	if err := ctx.Err(); err != nil {
		return pager.Page[E]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := n * s.pageSize
	if start >= len(s.elements) {
		return pager.Page[E]{}, nil
	}
	end := start + s.pageSize
	if end > len(s.elements) {
		end = len(s.elements)
	}
	page := pager.Page[E]{Elements: append([]E(nil), s.elements[start:end]...)}
	if end < len(s.elements) {
		page.NextPageID = n + 1
	}
	return page, nil
}

// SetElements replaces the backing dataset (for refresh tests).
func (s *FakeSource[E]) SetElements(elements ...E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = elements
}

// FailNext makes the next fetch of page n return err.
func (s *FakeSource[E]) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[n] = err
}

// Hold keeps fetches of page n blocked until the returned release
// function is called.
func (s *FakeSource[E]) Hold(n int) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[n] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, n)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how often page n was requested.
func (s *FakeSource[E]) Calls(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[n]
}

// TotalCalls returns the total number of page requests.
func (s *FakeSource[E]) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
