package pager

import (
	"context"
	"sync"
)

// pageFetch tracks one PageID's fetch state. While done is open the page
// is loading; afterwards page/err hold the shared outcome. page is
// retained only until every joiner of the in-flight fetch has read it,
// then cleared so the loader does not duplicate merged elements.
type pageFetch[E any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	loaded  bool
	waiters int
	page    Page[E]
	err     error
}

// Loader enforces the single-flight discipline over a PageSource: at most
// one concurrent fetch per PageID, and once a page is loaded it is never
// fetched again until Reset.
//
// Concurrent requests for a loading PageID join the in-flight fetch and
// share its outcome; requests for a loaded PageID return no page. All
// state transitions are serialized by an internal mutex.
type Loader[E any] struct {
	source PageSource[E]

	mu    sync.Mutex
	pages map[PageID]*pageFetch[E]
}

// NewLoader creates a loader over source.
func NewLoader[E any](source PageSource[E]) *Loader[E] {
	return &Loader[E]{
		source: source,
		pages:  make(map[PageID]*pageFetch[E]),
	}
}

// FetchPage fetches the page at id. The first caller for an id owns the
// source call; callers arriving while that fetch is in flight wait for it
// and receive the same page or error. A nil page with nil error means the
// page was already loaded and there is nothing new to merge.
func (l *Loader[E]) FetchPage(ctx context.Context, id PageID) (*Page[E], error) {
	l.mu.Lock()
	if f, ok := l.pages[id]; ok {
		if f.loaded {
			l.mu.Unlock()
			return nil, nil
		}
		f.waiters++
		l.mu.Unlock()
		select {
		case <-f.done:
			l.mu.Lock()
			page, err := f.page, f.err
			l.leaveLocked(f)
			l.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return &page, nil
		case <-ctx.Done():
			l.mu.Lock()
			l.leaveLocked(f)
			l.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	f := &pageFetch[E]{done: make(chan struct{}), cancel: cancel}
	l.pages[id] = f
	l.mu.Unlock()

	page, err := l.source.Page(fetchCtx, id)
	cancel()

	l.mu.Lock()
	f.page, f.err = page, err
	// A Reset may have replaced or removed our entry; only the current
	// owner updates the map.
	if l.pages[id] == f {
		if err != nil {
			delete(l.pages, id)
		} else {
			f.loaded = true
			f.cancel = nil
			if f.waiters == 0 {
				f.page = Page[E]{}
			}
		}
	}
	l.mu.Unlock()
	close(f.done)

	if err != nil {
		return nil, err
	}
	return &page, nil
}

// leaveLocked drops one joiner from f and releases the retained page
// once the last joiner of a loaded fetch has left. Callers hold l.mu.
func (l *Loader[E]) leaveLocked(f *pageFetch[E]) {
	f.waiters--
	if f.waiters == 0 && f.loaded {
		f.page = Page[E]{}
	}
}

// Loaded reports whether id has been fetched successfully since the last
// Reset.
func (l *Loader[E]) Loaded(id PageID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.pages[id]
	return ok && f.loaded
}

// Reset cancels every in-flight fetch and forgets all loaded pages, so
// that subsequent fetches hit the source again. Used by refresh flows.
func (l *Loader[E]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.pages {
		if f.cancel != nil {
			f.cancel()
		}
	}
	l.pages = make(map[PageID]*pageFetch[E])
}
