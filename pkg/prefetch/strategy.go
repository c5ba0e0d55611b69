// Package prefetch provides stateless strategies that decide when a
// paginated collection should proactively fetch further pages.
package prefetch

// Strategy answers the three prefetch questions a paginated collection
// asks during its lifecycle. Implementations hold no mutable state and
// may be shared freely.
type Strategy interface {
	// NeedsInitialPrefetch reports whether a fetch should be triggered
	// before any element has been loaded.
	NeedsInitialPrefetch() bool

	// NeedsPrefetchAfterPageLoaded reports whether another fetch should
	// follow a successful page merge, given the element count after it.
	NeedsPrefetchAfterPageLoaded(elementCount int) bool

	// NeedsPrefetchOnElementAppear reports whether the element at index
	// becoming visible should trigger a fetch.
	NeedsPrefetchOnElementAppear(index, elementCount int) bool
}

// Top keeps fetching until a minimum element count is reached. It is
// meant for screens that show the first Target elements of a dataset:
// it prefetches at start and after each page load while the collection
// is still short, and never reacts to element appearance.
type Top struct {
	// Target is the minimum number of elements to accumulate.
	Target int
}

// NeedsInitialPrefetch implements Strategy.
func (t Top) NeedsInitialPrefetch() bool { return true }

// NeedsPrefetchAfterPageLoaded implements Strategy.
func (t Top) NeedsPrefetchAfterPageLoaded(elementCount int) bool {
	return elementCount < t.Target
}

// NeedsPrefetchOnElementAppear implements Strategy.
func (t Top) NeedsPrefetchOnElementAppear(index, elementCount int) bool {
	return false
}

// Bottom implements infinite scrolling: it always prefetches the first
// page, never chains fetches after a load, and triggers a fetch when an
// element close to the end of the collection becomes visible.
type Bottom struct {
	// Offscreen is the number of trailing elements that may remain
	// below the fold before the next page is requested.
	Offscreen int
}

// NeedsInitialPrefetch implements Strategy.
func (b Bottom) NeedsInitialPrefetch() bool { return true }

// NeedsPrefetchAfterPageLoaded implements Strategy.
func (b Bottom) NeedsPrefetchAfterPageLoaded(elementCount int) bool {
	return false
}

// NeedsPrefetchOnElementAppear implements Strategy.
func (b Bottom) NeedsPrefetchOnElementAppear(index, elementCount int) bool {
	return elementCount-index <= b.Offscreen
}
