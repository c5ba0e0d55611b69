package pager

import (
	"context"
	"testing"
	"time"
)

// gatedSource serves one fixed page, optionally blocking until its gate
// closes.
type gatedSource struct {
	gate chan struct{}
}

func (s *gatedSource) FirstPageID() PageID { return 0 }

func (s *gatedSource) Page(ctx context.Context, id PageID) (Page[string], error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return Page[string]{}, ctx.Err()
		}
	}
	return Page[string]{Elements: []string{"a", "b"}}, nil
}

func (l *Loader[E]) retainedElements(id PageID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.pages[id]
	if !ok {
		return 0
	}
	return len(f.page.Elements)
}

func TestLoader_ReleasesPageAfterLoad(t *testing.T) {
	loader := NewLoader[string](&gatedSource{})

	page, err := loader.FetchPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if page == nil || len(page.Elements) != 2 {
		t.Fatalf("FetchPage returned %v", page)
	}

	if !loader.Loaded(0) {
		t.Fatal("page 0 should be marked loaded")
	}
	if got := loader.retainedElements(0); got != 0 {
		t.Errorf("loader retains %d elements for a loaded page, want 0", got)
	}
}

func TestLoader_ReleasesPageAfterJoinersServed(t *testing.T) {
	src := &gatedSource{gate: make(chan struct{})}
	loader := NewLoader[string](src)

	pages := make(chan *Page[string], 2)
	for i := 0; i < 2; i++ {
		go func() {
			page, err := loader.FetchPage(context.Background(), 0)
			if err != nil {
				t.Errorf("FetchPage failed: %v", err)
			}
			pages <- page
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)

	served := 0
	for i := 0; i < 2; i++ {
		if page := <-pages; page != nil {
			served++
			if len(page.Elements) != 2 {
				t.Errorf("caller received %v", page.Elements)
			}
		}
	}
	if served == 0 {
		t.Fatal("no caller received the page")
	}

	// Once every joiner has read the outcome the elements are released.
	deadline := time.Now().Add(time.Second)
	for loader.retainedElements(0) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("loader still retains %d elements", loader.retainedElements(0))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !loader.Loaded(0) {
		t.Error("page 0 should stay marked loaded")
	}
}
