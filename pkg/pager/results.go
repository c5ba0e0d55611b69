package pager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/go-pagination/pkg/collection"
	"github.com/Sternrassler/go-pagination/pkg/prefetch"
)

// State is the collection-level pagination state. Exactly one value holds
// at any time.
type State int

const (
	// StateNotCompleted means further pages may be available.
	StateNotCompleted State = iota

	// StateFetchingNextPage means a page fetch is in flight.
	StateFetchingNextPage

	// StateCompleted means the last merged page carried no continuation
	// token. Only Refresh or RemoveAllAndRefresh leave this state.
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFetchingNextPage:
		return "fetching_next_page"
	case StateCompleted:
		return "completed"
	default:
		return "not_completed"
	}
}

// Element is one random-access read from a paginated collection.
type Element[I comparable, E any] struct {
	ID    I
	Value E

	// NeedsPrefetchOnAppear is true when this element becoming visible
	// should trigger Prefetch. Computed lazily from the configured
	// prefetch strategy at read time.
	NeedsPrefetchOnAppear bool
}

// Snapshot is the observable state published to subscribers after each
// committed transition.
type Snapshot struct {
	State          State
	Err            error
	Count          int
	IsFetchingPage bool
}

// Config configures a Results collection.
type Config[I comparable, E any] struct {
	// Identify projects an element to its identity key. Required.
	Identify func(E) I

	// Append reconciles incoming pages with existing elements.
	// Defaults to UpdateOrAppend.
	Append collection.Strategy[I, E]

	// Prefetch decides when pages are fetched proactively. Nil disables
	// automatic prefetching; explicit FetchNextPage calls still work.
	Prefetch prefetch.Strategy

	// Logger overrides the package logger.
	Logger *zerolog.Logger
}

// Results is the observable pagination façade: it owns the ordered
// element collection, drives the page loader, and publishes pagination
// state, errors and element counts to subscribers.
//
// All mutation of observable state is linearized by an internal mutex.
// Completions carry a generation token and are discarded when a newer
// operation has superseded them, so a replaced fetch can never clobber
// state or surface an error.
type Results[I comparable, E any] struct {
	source   PageSource[E]
	loader   *Loader[E]
	identify func(E) I
	append   collection.Strategy[I, E]
	strategy prefetch.Strategy
	logger   zerolog.Logger

	mu       sync.Mutex
	elements *collection.Map[I, E]
	state    State
	err      *Error
	nextID   PageID // nil before the first page and after completion
	gen      uint64
	pending  []Snapshot
	subs     map[int]func(Snapshot)
	subID    int

	notifyMu sync.Mutex
}

// New creates a paginated collection over source.
func New[I comparable, E any](source PageSource[E], cfg Config[I, E]) (*Results[I, E], error) {
	if source == nil {
		return nil, ErrMissingSource
	}
	if cfg.Identify == nil {
		return nil, ErrMissingIdentify
	}
	logger := log.With().Str("component", "pager").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	appendStrategy := cfg.Append
	if appendStrategy == nil {
		appendStrategy = collection.UpdateOrAppend[I, E]()
	}
	return &Results[I, E]{
		source:   source,
		loader:   NewLoader(source),
		identify: cfg.Identify,
		append:   appendStrategy,
		strategy: cfg.Prefetch,
		logger:   logger,
		elements: collection.NewMap[I, E](),
		subs:     make(map[int]func(Snapshot)),
	}, nil
}

// Start triggers the strategy's initial prefetch, if any. Call it once
// when the collection becomes observed.
func (r *Results[I, E]) Start(ctx context.Context) {
	if r.strategy != nil && r.strategy.NeedsInitialPrefetch() {
		r.Prefetch(ctx)
	}
}

// State returns the current pagination state.
func (r *Results[I, E]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the currently recorded pagination error, or nil. The error
// persists until the next successful operation or an explicit Retry.
func (r *Results[I, E]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		return nil
	}
	return r.err
}

// IsFetchingPage reports whether a page fetch is in flight.
func (r *Results[I, E]) IsFetchingPage() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateFetchingNextPage
}

// Len returns the current element count.
func (r *Results[I, E]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elements.Len()
}

// Element returns the (identity, value, needsPrefetchOnAppear) triple at
// position i. It panics if i is out of range, mirroring slice indexing.
func (r *Results[I, E]) Element(i int) Element[I, E] {
	r.mu.Lock()
	defer r.mu.Unlock()
	el := Element[I, E]{
		ID:    r.elements.Key(i),
		Value: r.elements.Get(i),
	}
	if r.strategy != nil {
		el.NeedsPrefetchOnAppear = r.strategy.NeedsPrefetchOnElementAppear(i, r.elements.Len())
	}
	return el
}

// Elements returns an ordered snapshot of the current elements.
func (r *Results[I, E]) Elements() []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elements.Values()
}

// Subscribe registers fn to receive a Snapshot after each committed state
// transition, in commit order. The returned function cancels the
// subscription.
func (r *Results[I, E]) Subscribe(fn func(Snapshot)) (cancel func()) {
	r.mu.Lock()
	id := r.subID
	r.subID++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// OnElementAppear is the UI attachment hook: call it when the element at
// index becomes visible. It triggers Prefetch when the configured
// strategy asks for it.
func (r *Results[I, E]) OnElementAppear(ctx context.Context, index int) {
	if r.strategy == nil {
		return
	}
	r.mu.Lock()
	need := r.strategy.NeedsPrefetchOnElementAppear(index, r.elements.Len())
	r.mu.Unlock()
	if need {
		r.Prefetch(ctx)
	}
}

// FetchNextPage fetches the page after the last merged one (the first
// page when nothing has been fetched yet). A newer FetchNextPage or
// Refresh supersedes the in-flight call, whose completion is then
// discarded silently. On failure the previous pagination state is
// restored and the returned *Error is also recorded as observable state.
// Cancellation returns nil and changes nothing.
func (r *Results[I, E]) FetchNextPage(ctx context.Context) error {
	return r.fetchNextPage(ctx)
}

func (r *Results[I, E]) fetchNextPage(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	prev := r.state
	if prev == StateFetchingNextPage {
		// The fetch observed here is superseded by this call; its settled
		// state is not-completed, never the transient fetching state.
		prev = StateNotCompleted
	}
	r.state = StateFetchingNextPage
	id := r.nextID
	if id == nil {
		id = r.source.FirstPageID()
	}
	r.queueSnapshotLocked()
	r.mu.Unlock()
	r.publish()

	start := time.Now()
	page, err := r.loader.FetchPage(ctx, id)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		pagerFetchesTotal.WithLabelValues(string(OpFetchNextPage), "superseded").Inc()
		return nil
	}
	if err != nil {
		r.state = prev
		if isCancellation(err) {
			r.queueSnapshotLocked()
			r.mu.Unlock()
			r.publish()
			pagerFetchesTotal.WithLabelValues(string(OpFetchNextPage), "cancelled").Inc()
			return nil
		}
		perr := &Error{Op: OpFetchNextPage, Err: err}
		r.err = perr
		r.queueSnapshotLocked()
		r.mu.Unlock()
		r.publish()
		pagerFetchesTotal.WithLabelValues(string(OpFetchNextPage), "error").Inc()
		r.logger.Warn().Err(err).Msg("fetchNextPage failed")
		return perr
	}

	r.err = nil
	if page != nil {
		r.mergeLocked(page.Elements)
		r.nextID = page.NextPageID
		if r.nextID == nil {
			r.state = StateCompleted
		} else {
			r.state = StateNotCompleted
		}
	} else {
		// The page was already loaded; nothing new to merge.
		r.state = prev
	}
	count := r.elements.Len()
	needMore := page != nil && r.state == StateNotCompleted &&
		r.strategy != nil && r.strategy.NeedsPrefetchAfterPageLoaded(count)
	r.queueSnapshotLocked()
	r.mu.Unlock()
	r.publish()

	pagerFetchesTotal.WithLabelValues(string(OpFetchNextPage), "success").Inc()
	pagerFetchDuration.WithLabelValues(string(OpFetchNextPage)).Observe(time.Since(start).Seconds())
	r.logger.Debug().Int("count", count).Msg("page merged")

	if needMore {
		// Chain the next fetch off the caller's stack; its error, if
		// any, is recorded as observable state by the fetch itself.
		go r.Prefetch(context.Background())
	}
	return nil
}

// Refresh refetches the dataset from the first page. The stale collection
// is kept until the new first page arrives, then replaced atomically. On
// failure the previous state is restored and a Refresh error recorded.
func (r *Results[I, E]) Refresh(ctx context.Context) error {
	return r.refresh(ctx, false)
}

// RemoveAllAndRefresh clears the collection synchronously and enters
// StateFetchingNextPage before awaiting the first page, so the UI blanks
// immediately. On failure the state reverts to StateNotCompleted (the
// prior state is indeterminate once the collection is gone).
func (r *Results[I, E]) RemoveAllAndRefresh(ctx context.Context) error {
	return r.refresh(ctx, true)
}

func (r *Results[I, E]) refresh(ctx context.Context, clearFirst bool) error {
	op := OpRefresh
	if clearFirst {
		op = OpRemoveAllAndRefresh
	}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	prev := r.state
	if prev == StateFetchingNextPage {
		prev = StateNotCompleted
	}
	if clearFirst {
		r.elements.RemoveAll()
		r.nextID = nil
	}
	r.state = StateFetchingNextPage
	r.loader.Reset()
	first := r.source.FirstPageID()
	r.queueSnapshotLocked()
	r.mu.Unlock()
	r.publish()

	start := time.Now()
	page, err := r.loader.FetchPage(ctx, first)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		pagerFetchesTotal.WithLabelValues(string(op), "superseded").Inc()
		return nil
	}
	if err != nil {
		if clearFirst {
			r.state = StateNotCompleted
		} else {
			r.state = prev
		}
		if isCancellation(err) {
			r.queueSnapshotLocked()
			r.mu.Unlock()
			r.publish()
			pagerFetchesTotal.WithLabelValues(string(op), "cancelled").Inc()
			return nil
		}
		perr := &Error{Op: op, Err: err}
		r.err = perr
		r.queueSnapshotLocked()
		r.mu.Unlock()
		r.publish()
		pagerFetchesTotal.WithLabelValues(string(op), "error").Inc()
		r.logger.Warn().Err(err).Str("op", string(op)).Msg("refresh failed")
		return perr
	}

	r.err = nil
	if page != nil {
		if !clearFirst {
			// Replace the stale collection only now that new data is here.
			r.elements.RemoveAll()
		}
		r.mergeLocked(page.Elements)
		r.nextID = page.NextPageID
	}
	if r.nextID == nil {
		r.state = StateCompleted
	} else {
		r.state = StateNotCompleted
	}
	count := r.elements.Len()
	needMore := r.state == StateNotCompleted &&
		r.strategy != nil && r.strategy.NeedsPrefetchAfterPageLoaded(count)
	r.queueSnapshotLocked()
	r.mu.Unlock()
	r.publish()

	pagerFetchesTotal.WithLabelValues(string(op), "success").Inc()
	pagerFetchDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())

	if needMore {
		go r.Prefetch(context.Background())
	}
	return nil
}

// Prefetch is the idle-gated fetch used by automatic triggers. It is a
// no-op while the collection is completed, while an error is recorded
// (preventing endless retry loops), or while a fetch is already in
// flight. Its own fetch error is recorded internally and not returned.
func (r *Results[I, E]) Prefetch(ctx context.Context) {
	r.mu.Lock()
	switch {
	case r.state == StateCompleted:
		r.mu.Unlock()
		pagerPrefetchSkipsTotal.WithLabelValues("completed").Inc()
		return
	case r.err != nil:
		r.mu.Unlock()
		pagerPrefetchSkipsTotal.WithLabelValues("error_recorded").Inc()
		return
	case r.state == StateFetchingNextPage:
		r.mu.Unlock()
		pagerPrefetchSkipsTotal.WithLabelValues("in_flight").Inc()
		return
	}
	r.mu.Unlock()

	// Already recorded as observable state by fetchNextPage.
	_ = r.fetchNextPage(ctx)
}

// Retry re-invokes the operation that produced err. When err is nil the
// currently recorded error is retried. It is a no-op when there is
// nothing to retry.
func (r *Results[I, E]) Retry(ctx context.Context, err *Error) error {
	if err == nil {
		r.mu.Lock()
		err = r.err
		r.mu.Unlock()
		if err == nil {
			return nil
		}
	}
	switch err.Op {
	case OpRefresh:
		return r.Refresh(ctx)
	case OpRemoveAllAndRefresh:
		return r.RemoveAllAndRefresh(ctx)
	default:
		return r.FetchNextPage(ctx)
	}
}

// mergeLocked applies the append strategy. Callers hold r.mu.
func (r *Results[I, E]) mergeLocked(incoming []E) {
	r.elements.Append(incoming, r.identify, r.append)
	pagerElementsMergedTotal.Add(float64(len(incoming)))
}

// queueSnapshotLocked records the current observable state for delivery.
// Callers hold r.mu; delivery happens in publish, off the lock.
func (r *Results[I, E]) queueSnapshotLocked() {
	var err error
	if r.err != nil {
		err = r.err
	}
	r.pending = append(r.pending, Snapshot{
		State:          r.state,
		Err:            err,
		Count:          r.elements.Len(),
		IsFetchingPage: r.state == StateFetchingNextPage,
	})
}

// publish drains queued snapshots to subscribers in commit order. The
// notify mutex keeps deliveries ordered across concurrent operations
// without holding the state lock during callbacks.
func (r *Results[I, E]) publish() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return
		}
		snap := r.pending[0]
		r.pending = r.pending[1:]
		subs := make([]func(Snapshot), 0, len(r.subs))
		for _, fn := range r.subs {
			subs = append(subs, fn)
		}
		r.mu.Unlock()
		for _, fn := range subs {
			fn(snap)
		}
	}
}
