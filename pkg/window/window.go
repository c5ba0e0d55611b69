// Package window presents a huge, page-fetched dataset as a flat
// random-access sequence without holding it all in memory.
//
// A Collection knows its total element count upfront and fetches
// fixed-size pages lazily. Pages near the last accessed index are
// prefetched in the background by a worker pool bounded by the data
// source's read capacity; pages live in a bounded LRU cache. A cache
// miss outside the prefetch window is served by a synchronous blocking
// fetch that first cancels all in-flight background work.
package window

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Common errors returned by a Collection.
var (
	// ErrOutOfRange is returned for indexes outside [0, Len()).
	ErrOutOfRange = errors.New("index out of range")

	// ErrShortPage is returned when the fetcher delivered fewer rows
	// than the total count promised.
	ErrShortPage = errors.New("fetcher returned short page")
)

// RowFetcher supplies contiguous element windows by numeric offset.
// Implementations are treated as expensive; the collection never issues
// more than MaxConcurrentReads concurrent Rows calls.
type RowFetcher[E any] interface {
	// Count returns the total number of elements.
	Count(ctx context.Context) (int, error)

	// Rows returns the limit elements starting at offset, or fewer at
	// the end of the dataset. It must honor ctx cancellation.
	Rows(ctx context.Context, offset, limit int) ([]E, error)

	// MaxConcurrentReads caps the background worker pool. A cap of 1
	// serializes background fetches in prefetch-priority order.
	MaxConcurrentReads() int
}

// Config configures a Collection.
type Config struct {
	// PageSize is the number of elements per fetched page.
	PageSize int

	// AdjacentPages is the prefetch window size in pages, including the
	// page containing the accessed index.
	AdjacentPages int

	// CacheCapacity is the LRU page cache capacity in pages.
	// 0 keeps every fetched page (unbounded).
	CacheCapacity int

	// Logger overrides the package logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration suitable for list UIs.
func DefaultConfig() Config {
	return Config{
		PageSize:      50,
		AdjacentPages: 6,
		CacheCapacity: 32,
	}
}

type trackedState int

const (
	trackScheduled trackedState = iota
	trackFetched
)

// trackedPage is the per-pageIndex bookkeeping entry of the current
// prefetch window.
type trackedPage[E any] struct {
	state    trackedState
	elements []E
}

// Collection is a windowed, LRU-bounded random-access view over a
// RowFetcher. Get may block on a cache miss; all other work happens in
// the background.
type Collection[E any] struct {
	fetcher   RowFetcher[E]
	cfg       Config
	count     int
	pageCount int
	logger    zerolog.Logger
	group     *errgroup.Group

	cache   *lru.Cache[int, []E] // nil when CacheCapacity == 0
	plainMu sync.RWMutex
	plain   map[int][]E

	mu       sync.Mutex
	tracked  map[int]*trackedPage[E]
	bgCtx    context.Context
	bgCancel context.CancelFunc
	lastPage int
	accessed bool
}

// New creates a collection over fetcher, querying the total count
// upfront.
func New[E any](ctx context.Context, fetcher RowFetcher[E], cfg Config) (*Collection[E], error) {
	if fetcher == nil {
		return nil, fmt.Errorf("window: row fetcher is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.AdjacentPages <= 0 {
		cfg.AdjacentPages = DefaultConfig().AdjacentPages
	}

	count, err := fetcher.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("window: count: %w", err)
	}

	logger := log.With().Str("component", "window").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	reads := fetcher.MaxConcurrentReads()
	if reads <= 0 {
		reads = 1
	}
	group := &errgroup.Group{}
	group.SetLimit(reads)

	c := &Collection[E]{
		fetcher:   fetcher,
		cfg:       cfg,
		count:     count,
		pageCount: (count + cfg.PageSize - 1) / cfg.PageSize,
		logger:    logger,
		group:     group,
		tracked:   make(map[int]*trackedPage[E]),
	}
	if cfg.CacheCapacity > 0 {
		cache, err := lru.New[int, []E](cfg.CacheCapacity)
		if err != nil {
			return nil, fmt.Errorf("window: cache: %w", err)
		}
		c.cache = cache
	} else {
		c.plain = make(map[int][]E)
	}
	return c, nil
}

// Len returns the total element count.
func (c *Collection[E]) Len() int { return c.count }

// PageSize returns the configured page size.
func (c *Collection[E]) PageSize() int { return c.cfg.PageSize }

// Get returns the element at index. Cached pages are served immediately
// and keep the prefetch window centered on the access position; a miss
// cancels all background work, fetches the needed page synchronously
// (errors propagate to the caller) and re-triggers the window.
func (c *Collection[E]) Get(ctx context.Context, index int) (E, error) {
	var zero E
	if index < 0 || index >= c.count {
		return zero, fmt.Errorf("window: %w: index %d of %d", ErrOutOfRange, index, c.count)
	}
	page := index / c.cfg.PageSize
	slot := index % c.cfg.PageSize
	crossed := c.noteAccess(page)

	if rows, ok := c.lookup(page); ok {
		if crossed {
			c.scheduleWindow(page)
		}
		return c.element(rows, page, slot)
	}

	// Cold page: stop competing background reads, then fetch it now.
	c.cancelBackground()
	windowBlockingFallbacksTotal.Inc()
	rows, err := c.fetchRows(ctx, page)
	if err != nil {
		windowFetchesTotal.WithLabelValues("sync", "error").Inc()
		return zero, fmt.Errorf("window: page %d: %w", page, err)
	}
	windowFetchesTotal.WithLabelValues("sync", "success").Inc()
	c.cacheAdd(page, rows)
	c.mu.Lock()
	c.tracked[page] = &trackedPage[E]{state: trackFetched, elements: rows}
	c.mu.Unlock()
	c.scheduleWindow(page)
	return c.element(rows, page, slot)
}

// noteAccess records the accessed page and reports whether the access
// crossed into a different page (or is the first access).
func (c *Collection[E]) noteAccess(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accessed || c.lastPage != page {
		c.accessed = true
		c.lastPage = page
		return true
	}
	return false
}

// lookup serves a page from the tracked-fetched map or the cache.
func (c *Collection[E]) lookup(page int) ([]E, bool) {
	c.mu.Lock()
	if t, ok := c.tracked[page]; ok && t.state == trackFetched {
		rows := t.elements
		c.mu.Unlock()
		return rows, true
	}
	c.mu.Unlock()
	return c.cacheGet(page)
}

func (c *Collection[E]) element(rows []E, page, slot int) (E, error) {
	if slot >= len(rows) {
		var zero E
		return zero, fmt.Errorf("window: %w: page %d has %d rows, want slot %d",
			ErrShortPage, page, len(rows), slot)
	}
	return rows[slot], nil
}

func (c *Collection[E]) fetchRows(ctx context.Context, page int) ([]E, error) {
	offset := page * c.cfg.PageSize
	limit := c.cfg.PageSize
	if rest := c.count - offset; rest < limit {
		limit = rest
	}
	return c.fetcher.Rows(ctx, offset, limit)
}

// scheduleWindow rebuilds the tracked window around center and queues
// background fetches for its uncached pages, in priority order.
func (c *Collection[E]) scheduleWindow(center int) {
	ids := prefetchWindow(center, c.cfg.AdjacentPages, c.pageCount)
	inWindow := make(map[int]struct{}, len(ids))
	for _, p := range ids {
		inWindow[p] = struct{}{}
	}

	type job struct {
		page int
		t    *trackedPage[E]
	}
	var jobs []job

	c.mu.Lock()
	for p := range c.tracked {
		if _, ok := inWindow[p]; !ok {
			// Abandon bookkeeping only; eviction is the LRU's job.
			delete(c.tracked, p)
		}
	}
	if c.bgCancel == nil {
		c.bgCtx, c.bgCancel = context.WithCancel(context.Background())
	}
	ctx := c.bgCtx
	for _, p := range ids {
		if _, ok := c.tracked[p]; ok {
			continue
		}
		if rows, ok := c.cacheGet(p); ok {
			c.tracked[p] = &trackedPage[E]{state: trackFetched, elements: rows}
			continue
		}
		t := &trackedPage[E]{state: trackScheduled}
		c.tracked[p] = t
		jobs = append(jobs, job{page: p, t: t})
	}
	c.mu.Unlock()

	if len(jobs) == 0 {
		return
	}
	windowRebuildsTotal.Inc()
	c.logger.Debug().Int("center", center).Int("pages", len(jobs)).Msg("scheduling prefetch window")

	// A separate scheduler goroutine feeds the bounded pool so that Get
	// never blocks on a free worker slot. Submission order is window
	// priority order; with MaxConcurrentReads == 1 that is also the
	// execution order.
	go func() {
		for _, j := range jobs {
			if ctx.Err() != nil {
				return
			}
			page, t := j.page, j.t
			c.group.Go(func() error {
				c.fetchBackground(ctx, page, t)
				return nil
			})
		}
	}()
}

// fetchBackground loads one page for the prefetch window. Failures are
// logged and swallowed; a later synchronous access will retry.
func (c *Collection[E]) fetchBackground(ctx context.Context, page int, t *trackedPage[E]) {
	rows, err := c.fetchRows(ctx, page)

	c.mu.Lock()
	current := c.tracked[page] == t
	if err != nil {
		if current {
			delete(c.tracked, page)
		}
		c.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			windowFetchesTotal.WithLabelValues("background", "cancelled").Inc()
			c.logger.Debug().Int("page", page).Msg("background fetch cancelled")
			return
		}
		windowFetchesTotal.WithLabelValues("background", "error").Inc()
		c.logger.Warn().Err(err).Int("page", page).Msg("background page fetch failed")
		return
	}
	if current {
		t.state = trackFetched
		t.elements = rows
	}
	c.mu.Unlock()

	c.cacheAdd(page, rows)
	windowFetchesTotal.WithLabelValues("background", "success").Inc()
}

// cancelBackground interrupts all in-flight background reads and drops
// their bookkeeping. Fetched window entries are kept.
func (c *Collection[E]) cancelBackground() {
	c.mu.Lock()
	if c.bgCancel != nil {
		c.bgCancel()
		c.bgCancel = nil
		c.bgCtx = nil
		windowBackgroundCancelsTotal.Inc()
	}
	for p, t := range c.tracked {
		if t.state == trackScheduled {
			delete(c.tracked, p)
		}
	}
	c.mu.Unlock()
}

func (c *Collection[E]) cacheGet(page int) ([]E, bool) {
	if c.cache != nil {
		return c.cache.Get(page)
	}
	c.plainMu.RLock()
	defer c.plainMu.RUnlock()
	rows, ok := c.plain[page]
	return rows, ok
}

func (c *Collection[E]) cacheAdd(page int, rows []E) {
	if c.cache != nil {
		c.cache.Add(page, rows)
		return
	}
	c.plainMu.Lock()
	defer c.plainMu.Unlock()
	c.plain[page] = rows
}

// prefetchWindow lists the pages to prefetch around center: the
// containing page, forward pages up to half the window, backward pages
// to fill the rest, then remaining forward pages when backward was
// exhausted near page 0. The result never exceeds
// min(pageCount, windowSize) pages.
func prefetchWindow(center, windowSize, pageCount int) []int {
	if windowSize > pageCount {
		windowSize = pageCount
	}
	if windowSize <= 0 {
		return nil
	}
	ids := make([]int, 0, windowSize)
	ids = append(ids, center)
	forward := center + 1
	for len(ids) < windowSize && forward < pageCount && forward <= center+windowSize/2 {
		ids = append(ids, forward)
		forward++
	}
	for backward := center - 1; len(ids) < windowSize && backward >= 0; backward-- {
		ids = append(ids, backward)
	}
	for len(ids) < windowSize && forward < pageCount {
		ids = append(ids, forward)
		forward++
	}
	return ids
}
